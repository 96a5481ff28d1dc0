package availability

import (
	"strconv"
	"strings"
)

type ReplyKind int

const (
	ReplyUnknown ReplyKind = iota
	ReplyYes
	ReplyNo
)

// Reply is a host's parsed answer to the weekly availability question.
type Reply struct {
	Kind ReplyKind
	// Capacity is set only when the host named a number after "yes".
	Capacity *int
}

// ParseReply understands "yes", "yes <n>" and "no" in any case. The first
// recognised word wins; a number anywhere after "yes" is taken as capacity.
func ParseReply(message string) Reply {
	fields := strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '!' || r == '\t' || r == '\n'
	})
	for i, f := range fields {
		switch f {
		case "yes", "y", "כן":
			reply := Reply{Kind: ReplyYes}
			for _, rest := range fields[i+1:] {
				if n, err := strconv.Atoi(rest); err == nil && n >= 0 {
					reply.Capacity = &n
					break
				}
			}
			return reply
		case "no", "n", "לא":
			return Reply{Kind: ReplyNo}
		}
	}
	return Reply{Kind: ReplyUnknown}
}
