package template

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pipeterm/internal/storage"
)

func TestRender(t *testing.T) {
	contact := storage.Contact{
		Name:     "Ada Lovelace",
		Email:    "ada@example.com",
		Company:  "Analytical Engines",
		Position: "Chief Engineer",
	}

	t.Run("replaces every occurrence", func(t *testing.T) {
		out := Render("Hi {{contact_name}}, is {{contact_name}} still at {{company_name}}?", contact)
		assert.Equal(t, "Hi Ada Lovelace, is Ada Lovelace still at Analytical Engines?", out)
	})

	t.Run("absent attribute becomes empty string", func(t *testing.T) {
		out := Render("Role: {{position}}", storage.Contact{Name: "Bo"})
		assert.Equal(t, "Role: ", out)
	})

	t.Run("unknown tokens pass through", func(t *testing.T) {
		out := Render("Hello {{contact_name}}, ref {{ticket_id}}", contact)
		assert.Equal(t, "Hello Ada Lovelace, ref {{ticket_id}}", out)
	})

	t.Run("email and position resolve", func(t *testing.T) {
		out := Render("{{email}} / {{position}}", contact)
		assert.Equal(t, "ada@example.com / Chief Engineer", out)
	})

	t.Run("deterministic when an attribute contains a token", func(t *testing.T) {
		tricky := storage.Contact{Name: "{{company_name}}", Company: "Acme"}
		first := Render("{{contact_name}}", tricky)
		assert.Equal(t, "Acme", first, "name resolves before company, so the inserted token cascades")
		for i := 0; i < 200; i++ {
			assert.Equal(t, first, Render("{{contact_name}}", tricky))
		}
	})

	t.Run("later tokens never reintroduce earlier ones", func(t *testing.T) {
		tricky := storage.Contact{Name: "Ada", Company: "{{contact_name}}"}
		out := Render("{{company_name}}", tricky)
		assert.Equal(t, "{{contact_name}}", out, "company resolves after name, so its value passes through")
	})
}

func TestRenderParts(t *testing.T) {
	contact := storage.Contact{Name: "Ada", Company: "AE"}
	tpl := storage.EmailTemplate{
		Subject: "Intro to {{company_name}}",
		Body:    "Hi {{contact_name}},\n\nGreat to connect.",
	}
	subject, body := RenderParts(tpl, contact)
	assert.Equal(t, "Intro to AE", subject)
	assert.Equal(t, "Hi Ada,\n\nGreat to connect.", body)
}
