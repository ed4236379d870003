package donation

import (
	"embed"
	"html/template"
	"io"
)

//go:embed templates/success.html
var templateFS embed.FS

var successPage = template.Must(template.ParseFS(templateFS, "templates/success.html"))

type successView struct {
	Confirmation
	GiveURL string
}

// RenderSuccessPage writes the confirmation page. giveURL is where the donor
// goes to give again.
func RenderSuccessPage(w io.Writer, c Confirmation, giveURL string) error {
	if giveURL == "" {
		giveURL = "/"
	}
	return successPage.Execute(w, successView{Confirmation: c, GiveURL: giveURL})
}
