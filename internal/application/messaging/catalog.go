package messaging

import (
	"html"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

const (
	keyText       = "update.text"
	keyHTML       = "update.html"
	keySubject    = "update.subject"
	keyRegistered = "telegram.registered"
	keyUnknown    = "telegram.unknown"
	keyUsage      = "telegram.usage"
)

var (
	supportedLocales = []language.Tag{language.French, language.English}
	localeMatcher    = language.NewMatcher(supportedLocales)
	messages         = buildCatalog()
)

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.French))

	set := func(tag language.Tag, key, msg string) {
		if err := b.SetString(tag, key, msg); err != nil {
			panic(err)
		}
	}

	set(language.French, keyText, "Bonjour %[1]s,\nvoici le lien à suivre pour mettre à jour les données covid de %[2]s sur ICUBAM: %[3]s")
	set(language.English, keyText, "Hello %[1]s,\nhere is the link to update the covid data of %[2]s on ICUBAM: %[3]s")

	set(language.French, keyHTML, `Bonjour %[1]s,<br/>voici le <a href="%[3]s">lien à suivre pour mettre à jour les données covid de %[2]s sur ICUBAM</a>`)
	set(language.English, keyHTML, `Hello %[1]s,<br/>here is the <a href="%[3]s">link to update the covid data of %[2]s on ICUBAM</a>`)

	set(language.French, keySubject, "ICUBAM : mise à jour de %[1]s")
	set(language.English, keySubject, "ICUBAM: update %[1]s")

	set(language.French, keyRegistered, "Vous êtes maintenant inscrit à ICUBAM.")
	set(language.English, keyRegistered, "You are now registered to ICUBAM.")

	set(language.French, keyUnknown, "Utilisateur inconnu.")
	set(language.English, keyUnknown, "Cannot identify user.")

	set(language.French, keyUsage, "Utilisez le lien reçu par SMS ou email pour vous inscrire.")
	set(language.English, keyUsage, "Use the link you received by SMS or email to register.")

	return b
}

// matchLocale maps a stored locale such as "en_US" to a supported tag.
func matchLocale(locale string) language.Tag {
	tag, err := language.Parse(strings.ReplaceAll(locale, "_", "-"))
	if err != nil {
		return supportedLocales[0]
	}
	_, idx, _ := localeMatcher.Match(tag)
	return supportedLocales[idx]
}

func printer(locale string) *message.Printer {
	return message.NewPrinter(matchLocale(locale), message.Catalog(messages))
}

// Content is one message rendered for every channel.
type Content struct {
	Text    string
	HTML    string
	Subject string
}

// Render localizes msg.
func Render(msg *Message) Content {
	p := printer(msg.Locale)
	name := cases.Title(matchLocale(msg.Locale)).String(msg.UserName)
	return Content{
		Text:    p.Sprintf(keyText, name, msg.ICUName, msg.URL),
		HTML:    p.Sprintf(keyHTML, html.EscapeString(name), html.EscapeString(msg.ICUName), html.EscapeString(msg.URL)),
		Subject: p.Sprintf(keySubject, msg.ICUName),
	}
}

func localized(locale, key string) string {
	return printer(locale).Sprintf(key)
}
