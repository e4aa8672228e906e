package enums

import "fmt"

// QRStatus tracks the lifecycle of an issued QR code.
type QRStatus string

const (
	QRStatusUnused  QRStatus = "unused"
	QRStatusActive  QRStatus = "active"
	QRStatusRevoked QRStatus = "revoked"
)

var validQRStatuses = []QRStatus{
	QRStatusUnused,
	QRStatusActive,
	QRStatusRevoked,
}

// String implements fmt.Stringer.
func (s QRStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known QRStatus.
func (s QRStatus) IsValid() bool {
	for _, candidate := range validQRStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s QRStatus) IsTerminal() bool {
	return s == QRStatusRevoked
}

// ParseQRStatus converts raw input into a QRStatus.
func ParseQRStatus(value string) (QRStatus, error) {
	for _, candidate := range validQRStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid qr status %q", value)
}
