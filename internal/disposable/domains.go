package disposable

// knownDomains are mailbox providers that hand out throwaway addresses.
var knownDomains = map[string]struct{}{
	"temp-mail.org":          {},
	"guerrillamail.com":      {},
	"mailinator.com":         {},
	"throwaway.email":        {},
	"tempmail.com":           {},
	"fakeinbox.com":          {},
	"sharklasers.com":        {},
	"guerrillamailblock.com": {},
	"grr.la":                 {},
	"dispostable.com":        {},
	"yopmail.com":            {},
	"trashmail.com":          {},
	"trashmail.me":           {},
	"trashmail.net":          {},
	"maildrop.cc":            {},
	"getairmail.com":         {},
	"getnada.com":            {},
	"tempr.email":            {},
	"discard.email":          {},
	"tmpmail.org":            {},
	"tmpmail.net":            {},
	"emailondeck.com":        {},
	"33mail.com":             {},
	"guerrillamail.info":     {},
	"guerrillamail.net":      {},
	"guerrillamail.de":       {},
	"tempail.com":            {},
	"burnermail.io":          {},
	"inboxbear.com":          {},
	"mailnesia.com":          {},
}
