package routes

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
)

type callbackData struct {
	Payload gin.H
	Origin  string
	Text    string
}

func mustCallbackTemplate() *template.Template {
	return template.Must(template.New("callback").Parse(callbackPage))
}

// renderCallback writes the popup page. Template execution failing means
// the response is already partially written, so the error is terminal.
func renderCallback(c *gin.Context, tmpl *template.Template, origin string, payload gin.H, text string) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	_ = tmpl.Execute(c.Writer, callbackData{
		Payload: payload,
		Origin:  origin,
		Text:    text,
	})
}
