package email

import "fmt"

// Las plantillas son deliberadamente simples: HTML inline-styled que
// sobrevive a cualquier cliente de correo. El QR va como cid embebido.

func renderText(c Confirmation) string {
	return fmt.Sprintf(`Përshëndetje %s,

Regjistrimi juaj për %s u konfirmua.

Kategoria: %s
Tarifa: %.2f %s

Bileta juaj (QR) gjendet e bashkëngjitur. Mund ta verifikoni edhe këtu:
%s

Ju mirëpresim!
`, c.FullName, c.ConferenceName, c.Category, c.FeeAmount, c.Currency, c.VerificationURL)
}

func renderHTML(c Confirmation) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family:Arial,Helvetica,sans-serif;color:#1a1a1a;max-width:560px;margin:0 auto;padding:24px">
  <h2 style="color:#14532d">Regjistrimi u konfirmua</h2>
  <p>Përshëndetje <strong>%s</strong>,</p>
  <p>Regjistrimi juaj për <strong>%s</strong> u konfirmua.</p>
  <table style="border-collapse:collapse;margin:16px 0">
    <tr><td style="padding:4px 12px 4px 0;color:#666">Kategoria</td><td>%s</td></tr>
    <tr><td style="padding:4px 12px 4px 0;color:#666">Tarifa</td><td>%.2f %s</td></tr>
  </table>
  <p>Paraqitni këtë kod QR në hyrje:</p>
  <p style="text-align:center"><img src="cid:ticket.png" alt="Bileta QR" width="256" height="256"/></p>
  <p style="font-size:13px;color:#666">Ose hapni linkun e verifikimit:<br/>
    <a href="%s">%s</a></p>
</body>
</html>`, c.FullName, c.ConferenceName, c.Category, c.FeeAmount, c.Currency,
		c.VerificationURL, c.VerificationURL)
}
