// Package translate formats user-facing messages for the locale of the host.
package translate

import (
	"sync"

	"github.com/jeandeaual/go-locale"
	"github.com/tliron/commonlog"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	mutex   sync.RWMutex
	tag     language.Tag
	printer *message.Printer
)

func init() {
	locales, err := locale.GetLocales()
	if err != nil {
		commonlog.GetLogger("dvm.translate").Warningf("locale: %v", err)
	}

	SetLocales(locales...)
}

// SetLocales selects the message printer from a preference list of BCP 47
// tags. An empty list selects en-US.
func SetLocales(locales ...string) {
	if len(locales) == 0 {
		locales = []string{"en-US"}
	}

	t := message.MatchLanguage(locales...)

	mutex.Lock()
	tag = t
	printer = message.NewPrinter(t)
	mutex.Unlock()
}

// Language returns the language tag currently used for messages.
func Language() language.Tag {
	mutex.RLock()
	defer mutex.RUnlock()

	return tag
}

// From an en-US Sprintf() format, translate to string.
func From(key message.Reference, args ...any) string {
	mutex.RLock()
	p := printer
	mutex.RUnlock()

	return p.Sprintf(key, args...)
}
