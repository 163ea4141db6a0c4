package utils

import "strings"

var disposableDomains = loadDisposableDomains()

// IsDisposableEmail reports whether the address belongs to a known
// throwaway mail provider.
func IsDisposableEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	return disposableDomains[strings.ToLower(strings.TrimSpace(email[at+1:]))]
}

func loadDisposableDomains() map[string]bool {
	domains := make(map[string]bool)
	for _, d := range strings.Split(disposableDomainList, "\n") {
		d = strings.TrimSpace(d)
		if d != "" {
			domains[d] = true
		}
	}
	return domains
}

const disposableDomainList = `
10minutemail.com
discard.email
dispostable.com
fake-mail.com
fakeinbox.com
getairmail.com
guerrillamail.com
mail-temp.com
mailcatch.com
maildrop.cc
mailinator.com
mailinator2.com
mailmetrash.com
mailnesia.com
mintemail.com
mytemp.email
notmailinator.com
spam.la
spam4.me
spambox.us
spamcorptastic.com
spamday.com
spamdecoy.net
spamfree.eu
spamfree24.org
spamgourmet.com
spamherelots.com
spamhereplease.com
spamhole.com
spamspot.com
spamthis.co.uk
spamthisplease.com
suremail.info
temp-mail.io
temp-mail.org
tempail.com
tempemail.net
tempinbox.com
tempmail.org
tempmailaddress.com
tempomail.fr
temporaryinbox.com
thankyou2010.com
thisisnotmyrealemail.com
throwawaymail.com
trash-mail.at
trash-mail.com
trash-mail.de
trashmail.at
trashmail.com
trashmail.de
trashmail.me
trashmail.net
trashmail.org
trashmail.ws
trashymail.com
yopmail.com
`
