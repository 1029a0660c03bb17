package messaging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestMatchLocale(t *testing.T) {
	assert.Equal(t, language.French, matchLocale(""))
	assert.Equal(t, language.French, matchLocale("fr"))
	assert.Equal(t, language.English, matchLocale("en_US"))
	assert.Equal(t, language.English, matchLocale("en-GB"))
	assert.Equal(t, language.French, matchLocale("not a locale"))
}

func TestRender(t *testing.T) {
	msg := &Message{UserName: "jean dupont", ICUName: "CHU <A>", URL: "http://x/update?id=t&y"}

	fr := Render(msg)
	assert.Equal(t, "Bonjour Jean Dupont,\nvoici le lien à suivre pour mettre à jour les données covid de CHU <A> sur ICUBAM: http://x/update?id=t&y", fr.Text)
	assert.Contains(t, fr.HTML, "CHU &lt;A&gt;")
	assert.Contains(t, fr.HTML, `href="http://x/update?id=t&amp;y"`)
	assert.Equal(t, "ICUBAM : mise à jour de CHU <A>", fr.Subject)

	msg.Locale = "en"
	en := Render(msg)
	assert.Contains(t, en.Text, "Hello Jean Dupont")
	assert.Equal(t, "ICUBAM: update CHU <A>", en.Subject)
}
