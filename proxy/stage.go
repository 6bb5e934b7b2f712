package proxy

// Stage - этап обработки запроса в конвейере
type Stage int

const (
	Received Stage = iota
	PathParsed
	Routed
	Authorized
	Rewritten
	Forwarded
	Errored // поглощающее состояние
)

func (s Stage) String() string {
	switch s {
	case Received:
		return "received"
	case PathParsed:
		return "path_parsed"
	case Routed:
		return "routed"
	case Authorized:
		return "authorized"
	case Rewritten:
		return "rewritten"
	case Forwarded:
		return "forwarded"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}
