// Package alert delivers match alerts and report confirmations to contacts.
package alert

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrTransport wraps every delivery failure.
var ErrTransport = errors.New("alert transport failed")

// Kind tells transports which message to render.
type Kind string

const (
	// KindMatch is a confirmed sighting of a missing person.
	KindMatch Kind = "match"
	// KindReportConfirmation acknowledges a newly registered report.
	KindReportConfirmation Kind = "report_confirmation"
)

// Alert is one message to one contact.
type Alert struct {
	Kind            Kind
	CaseID          int64
	Name            string  // missing person's display name
	Phone           string  // contact phone as entered in the report
	Score           float64 // cosine distance of the confirming match
	ComplainantName string
}

// Receipt identifies a delivered message.
type Receipt struct {
	Transport string
	ID        string
	Status    string
}

// Transport delivers one alert. Retries, if any, belong to the transport.
type Transport interface {
	SendAlert(ctx context.Context, a Alert) (Receipt, error)
}

// SimilarityPercent converts a cosine distance to a 0-100 similarity rounded
// to one decimal.
func SimilarityPercent(distance float64) float64 {
	pct := math.Round((1-distance)*1000) / 10
	return max(0, pct)
}

// Formatter renders alert text.
type Formatter struct {
	OfficerPhone string
	Signature    string
}

// Format renders the message body for an alert.
func (f Formatter) Format(a Alert) string {
	signature := f.Signature
	if signature == "" {
		signature = "Missing Person Alert System"
	}

	caseRef := "a reported case"
	if a.CaseID > 0 {
		caseRef = fmt.Sprintf("Case #%d", a.CaseID)
	}

	var b strings.Builder
	switch a.Kind {
	case KindReportConfirmation:
		greeting := "Hello"
		if a.ComplainantName != "" {
			greeting = "Hello " + a.ComplainantName
		}
		fmt.Fprintf(&b, "%s,\n\nYour missing person report for *%s* has been registered as %s.\n\n", greeting, a.Name, caseRef)
		b.WriteString("You will be notified on this number if a possible match is found.\n\n")
	default:
		b.WriteString("*Missing Person Alert*\n\n")
		fmt.Fprintf(&b, "A possible match has been found for *%s* registered under %s.\n\n", a.Name, caseRef)
		fmt.Fprintf(&b, "Match confidence: *%s%%*\n\n", strconv.FormatFloat(SimilarityPercent(a.Score), 'f', 1, 64))
		if f.OfficerPhone != "" {
			fmt.Fprintf(&b, "Please contact the officer immediately:\n*%s*\n\n", f.OfficerPhone)
		}
	}
	b.WriteString("- " + signature)
	return b.String()
}

// NormalizePhone converts a raw phone number to "whatsapp:+<cc><number>".
// Numbers without a leading + are assumed to be national numbers of the
// default country code.
func NormalizePhone(phone, countryCode string) (string, error) {
	phone = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(phone))
	if phone == "" {
		return "", fmt.Errorf("%w: empty phone number", ErrTransport)
	}
	if strings.HasPrefix(phone, "whatsapp:") {
		return phone, nil
	}
	if strings.HasPrefix(phone, "+") {
		return "whatsapp:" + phone, nil
	}
	if countryCode != "" && strings.HasPrefix(phone, countryCode) && len(phone) == len(countryCode)+10 {
		return "whatsapp:+" + phone, nil
	}
	phone = strings.TrimPrefix(phone, "0")
	return "whatsapp:+" + countryCode + phone, nil
}
