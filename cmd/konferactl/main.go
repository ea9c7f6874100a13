// konferactl es la CLI operativa: generación de claves, credenciales de
// puerta, scanner de terminal y operaciones de admin vía /v1/admin.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/konfera/internal/checkin"
	"github.com/dropDatabas3/konfera/internal/config"
	"github.com/dropDatabas3/konfera/internal/keys"
	"github.com/dropDatabas3/konfera/internal/scanner"
	"github.com/dropDatabas3/konfera/internal/store/pg"
)

type client struct {
	BaseURL  string
	AdminKey string
	HTTP     *http.Client
}

func (c *client) do(method, path string, body []byte) (int, []byte, error) {
	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(method, url, strings.NewReader(string(body)))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("X-Admin-Key", c.AdminKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) print(status int, body []byte) {
	var v any
	if json.Unmarshal(body, &v) == nil {
		p, _ := json.MarshalIndent(v, "", "  ")
		fmt.Println(string(p))
		return
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

func main() {
	_ = godotenv.Load()

	var (
		baseURL  = envOr("KONFERA_URL", "http://localhost:8080")
		adminKey = envOr("ADMIN_SECRET_KEY", "")
	)

	root := &cobra.Command{
		Use:   "konferactl",
		Short: "CLI operativa de konfera",
	}
	root.PersistentFlags().StringVar(&baseURL, "url", baseURL, "URL base del API (env KONFERA_URL)")
	root.PersistentFlags().StringVar(&adminKey, "admin-key", adminKey, "Clave de admin (env ADMIN_SECRET_KEY)")

	cl := &client{BaseURL: baseURL, AdminKey: adminKey, HTTP: &http.Client{Timeout: 30 * time.Second}}

	root.AddCommand(keysCmd())
	root.AddCommand(gateCmd(&baseURL))
	root.AddCommand(adminCmd(cl))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// ─── keys ───

func keysCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "keys", Short: "Material de firma de tickets"}

	cmd.AddCommand(&cobra.Command{
		Use:   "generate",
		Short: "Generar un par RSA nuevo e imprimir los PEMs",
		RunE: func(_ *cobra.Command, _ []string) error {
			material, err := keys.LoadPrivateKey("") // PEM vacío = generar
			if err != nil {
				return err
			}
			fmt.Println("# QR_PRIVATE_KEY_PEM (guardar en secreto):")
			fmt.Println(material.PrivateKeyPEM)
			fmt.Println("# QR_PUBLIC_KEY_PEM (distribuir a verificadores):")
			fmt.Println(material.PublicKeyPEM)
			return nil
		},
	})

	return cmd
}

// ─── gate ───

func gateCmd(baseURL *string) *cobra.Command {
	cmd := &cobra.Command{Use: "gate", Short: "Credenciales y scanner de puerta"}

	var label, configPath string
	newKey := &cobra.Command{
		Use:   "new-key",
		Short: "Crear una credencial de puerta (imprime la clave UNA vez)",
		RunE: func(_ *cobra.Command, _ []string) error {
			if label == "" {
				return fmt.Errorf("--label es requerido")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cfg.Storage.DSN == "" {
				return fmt.Errorf("DATABASE_URL / storage.dsn es requerido")
			}

			ctx := context.Background()
			store, err := pg.New(ctx, cfg.Storage.DSN, pg.Tuning{})
			if err != nil {
				return err
			}
			defer store.Close()

			plain, key, err := checkin.GenerateGateKey(label)
			if err != nil {
				return err
			}
			if err := store.CreateGateKey(ctx, key); err != nil {
				return err
			}
			fmt.Printf("label: %s\nkey:   %s\n", label, plain)
			fmt.Println("guardala ahora; no se puede recuperar después")
			return nil
		},
	}
	newKey.Flags().StringVar(&label, "label", "", "Nombre del voluntario/dispositivo")
	newKey.Flags().StringVar(&configPath, "config", "", "Path al YAML de config (opcional)")
	cmd.AddCommand(newKey)

	var gateKey string
	scan := &cobra.Command{
		Use:   "scan",
		Short: "Scanner de terminal: lee textos de QR decodificados de stdin, uno por línea",
		RunE: func(c *cobra.Command, _ []string) error {
			if gateKey == "" {
				return fmt.Errorf("--gate-key es requerido")
			}

			sc := scanner.New(
				stdinFrames{r: bufio.NewScanner(os.Stdin)},
				scanner.NewClient(*baseURL),
				printResult,
				// stdin ya pausa entre líneas; sin hold extra por resultado
				scanner.Config{ResultHold: scanner.NoResultHold},
			)
			sc.Authorize(gateKey)

			fmt.Fprintln(os.Stderr, "pegá el contenido de un QR y ENTER (Ctrl-D para salir)")
			err := sc.Run(c.Context())
			if err == io.EOF || err == context.Canceled {
				return nil
			}
			return err
		},
	}
	scan.Flags().StringVar(&gateKey, "gate-key", envOr("GATE_KEY", ""), "Credencial de puerta (env GATE_KEY)")
	cmd.AddCommand(scan)

	return cmd
}

// stdinFrames adapta stdin a scanner.FrameSource: cada línea es un "frame".
type stdinFrames struct{ r *bufio.Scanner }

func (s stdinFrames) NextFrame(ctx context.Context) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if !s.r.Scan() {
		if err := s.r.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return s.r.Text(), nil
}

func printResult(res scanner.ScanResult) {
	switch res.Kind {
	case scanner.ResultFirstCheckIn:
		fmt.Printf("✔ CHECK-IN  %s (%s)\n", res.Outcome.Name, res.Outcome.Category)
	case scanner.ResultAlreadyCheckedIn:
		when := ""
		if res.Outcome.CheckedInAt != nil {
			when = res.Outcome.CheckedInAt.Local().Format("15:04:05")
		}
		fmt.Printf("⚠ YA INGRESÓ  %s (a las %s)\n", res.Outcome.Name, when)
	case scanner.ResultUnauthorized:
		fmt.Println("✘ credencial de puerta inválida; reingresá con --gate-key")
	case scanner.ResultInvalidTicket:
		fmt.Println("✘ bileta e pavlefshme")
	default:
		fmt.Printf("✘ error transitorio, reintentá: %v\n", res.Err)
	}
}

// ─── admin ───

func adminCmd(cl *client) *cobra.Command {
	cmd := &cobra.Command{Use: "admin", Short: "Operaciones administrativas (vía /v1/admin)"}

	var csvOut bool
	var query string
	list := &cobra.Command{
		Use:   "list",
		Short: "Listar inscripciones",
		RunE: func(_ *cobra.Command, _ []string) error {
			path := "/v1/admin/registrations"
			params := []string{}
			if csvOut {
				params = append(params, "format=csv")
			}
			if query != "" {
				params = append(params, "q="+query)
			}
			if len(params) > 0 {
				path += "?" + strings.Join(params, "&")
			}
			status, body, err := cl.do("GET", path, nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("list fallo: status=%d body=%s", status, string(body))
			}
			if csvOut {
				fmt.Print(string(body))
				return nil
			}
			cl.print(status, body)
			return nil
		},
	}
	list.Flags().BoolVar(&csvOut, "csv", false, "Exportar CSV")
	list.Flags().StringVar(&query, "q", "", "Búsqueda por nombre/email")
	cmd.AddCommand(list)

	var resendID string
	resend := &cobra.Command{
		Use:   "resend",
		Short: "Reenviar el email de confirmación de una inscripción",
		RunE: func(_ *cobra.Command, _ []string) error {
			if resendID == "" {
				return fmt.Errorf("--id es requerido")
			}
			status, body, err := cl.do("POST", "/v1/admin/registrations/"+resendID+"/resend", nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("resend fallo: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}
	resend.Flags().StringVar(&resendID, "id", "", "ID de la inscripción")
	cmd.AddCommand(resend)

	return cmd
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
