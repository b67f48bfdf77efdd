package domain

// NavIdent is the personal identifier of a case worker (e.g. "Z123456").
// The empty value means "no human actor"; use SystemActor for machine writes.
type NavIdent string

// Enhetsnummer is the office-unit number a case worker acted on behalf of.
type Enhetsnummer string

// Actor attributes a mutation to who performed it and from which unit. Every
// history entry and every last-modified stamp carries one.
type Actor struct {
	Ident NavIdent
	Enhet Enhetsnummer
}

// SystemActor attributes writes performed by the reconciliation pipeline
// rather than a case worker.
var SystemActor = Actor{Ident: "SYSTEM"}

func (a Actor) IsSystem() bool {
	return a.Ident == SystemActor.Ident
}
