package mailer

// Priority is the importance level rendered into the X-Priority headers.
type Priority int

const (
	PriorityUrgent Priority = 1
	PriorityNormal Priority = 3
)

var priorityHeaders = map[Priority]string{
	PriorityUrgent: "X-Priority: 1" + crlf +
		"X-MSMail-Priority: High" + crlf +
		"Importance: High" + crlf,
	PriorityNormal: "X-Priority: 3" + crlf +
		"X-MSMail-Priority: Normal" + crlf +
		"Importance: Normal" + crlf,
}

// Normalize maps unrecognized levels to PriorityNormal.
func (p Priority) Normalize() Priority {
	if _, ok := priorityHeaders[p]; ok {
		return p
	}
	return PriorityNormal
}

// Headers returns the three-line priority header block.
func (p Priority) Headers() string {
	return priorityHeaders[p.Normalize()]
}

func (p Priority) String() string {
	if p.Normalize() == PriorityUrgent {
		return "urgent"
	}
	return "normal"
}
