package logger

// RedactPhone masks a phone-like address for safe logging, keeping the
// country prefix and last two digits: "2348012345678" → "234*******78".
// Values too short to be a phone number are fully masked.
func RedactPhone(phone string) string {
	if len(phone) < 7 {
		return "***"
	}
	masked := make([]byte, len(phone))
	for i := range phone {
		if i < 3 || i >= len(phone)-2 {
			masked[i] = phone[i]
		} else {
			masked[i] = '*'
		}
	}
	return string(masked)
}
