package whatsapp

import "strings"

// NormalizePhone reduces a Brazilian phone number in any common format to its
// 11-digit national form (2-digit area code + 9-digit mobile). The country
// code 55 is stripped when present.
func NormalizePhone(phone string) string {
	digits := onlyDigits(phone)

	if strings.HasPrefix(digits, "55") && len(digits) > 11 {
		digits = digits[2:]
	}

	return digits
}

// WireFormat converts a phone number to the international digits-only form the
// WhatsApp APIs expect: country code 55 followed by area code and a 9-digit
// mobile. Legacy 8-digit numbers get the extra leading 9 inserted.
func WireFormat(phone string) string {
	digits := onlyDigits(phone)

	if !strings.HasPrefix(digits, "55") {
		digits = "55" + digits
	}

	// 55 + area code + 8 digits: insert the mobile nine.
	if len(digits) == 12 {
		digits = digits[:4] + "9" + digits[4:]
	}

	return digits
}

// SuffixKey returns the trailing digits used to match an inbound sender
// against stored guest numbers, tolerating country-code and nine-digit
// variations.
func SuffixKey(phone string) string {
	digits := NormalizePhone(phone)
	if len(digits) <= 9 {
		return digits
	}
	return digits[len(digits)-9:]
}

func onlyDigits(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
