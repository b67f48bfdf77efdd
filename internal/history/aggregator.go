// Package history renders a record's heterogeneous timeline for presentation.
// The merge itself is trivial; the subtlety is that every entry variant reads
// its ordering key from a different field, so the sort key extraction goes
// through the variant's own OccurredAt.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"deltaker/internal/participant"
	id "deltaker/pkg/domain"
)

// NameResolver turns actor and unit identifiers into display names for
// presentation. Identifiers that cannot be resolved are simply absent from
// the returned maps; the aggregator falls back to the raw identifier.
type NameResolver interface {
	ResolveNames(ctx context.Context, identer []id.NavIdent, enheter []id.Enhetsnummer) (map[id.NavIdent]string, map[id.Enhetsnummer]string, error)
}

// EntryType discriminates the rendered view variants.
type EntryType string

const (
	TypeEndring     EntryType = "ENDRING"
	TypeVedtak      EntryType = "VEDTAK"
	TypeSamtykke    EntryType = "SAMTYKKE"
	TypeImport      EntryType = "IMPORT"
	TypeKoordinator EntryType = "KOORDINATOR"
)

// View is one rendered timeline entry. Fields that do not apply to a variant
// stay zero; Tidspunkt and Type are always set.
type View struct {
	Type      EntryType
	Tidspunkt string
	Kind      participant.EndringKind
	Payload   participant.Mutation
	Handling  string
	PaVegneAv bool

	UtfortAv      string
	UtfortAvEnhet string
}

// Aggregator merges a record's history entries into one descending timeline.
type Aggregator struct {
	resolver NameResolver
	logger   *slog.Logger
}

func NewAggregator(resolver NameResolver, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{resolver: resolver, logger: logger}
}

// Render returns the record's timeline sorted most recent first. Entries with
// equal timestamps keep their stored relative order. Name resolution failure
// degrades to raw identifiers; it never fails the read.
func (a *Aggregator) Render(ctx context.Context, d participant.Deltaker) ([]View, error) {
	entries := make([]participant.HistorikkEntry, len(d.Historikk))
	copy(entries, d.Historikk)

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].OccurredAt().After(entries[j].OccurredAt())
	})

	identNavn, enhetNavn := a.resolve(ctx, entries)

	views := make([]View, 0, len(entries))
	for _, e := range entries {
		views = append(views, a.viewOf(e, identNavn, enhetNavn))
	}
	return views, nil
}

func (a *Aggregator) viewOf(e participant.HistorikkEntry, identNavn map[id.NavIdent]string, enhetNavn map[id.Enhetsnummer]string) View {
	switch v := e.(type) {
	case participant.Endring:
		return View{
			Type:          TypeEndring,
			Tidspunkt:     v.Endret.Format(timeFormat),
			Kind:          v.Kind,
			Payload:       v.Payload,
			UtfortAv:      displayName(v.Av, identNavn),
			UtfortAvEnhet: displayUnit(v.Av, enhetNavn),
		}
	case participant.VedtakFattet:
		return View{
			Type:          TypeVedtak,
			Tidspunkt:     v.Fattet.Format(timeFormat),
			PaVegneAv:     v.FattetAvNav,
			UtfortAv:      displayName(v.Av, identNavn),
			UtfortAvEnhet: displayUnit(v.Av, enhetNavn),
		}
	case participant.SamtykkeGitt:
		return View{
			Type:          TypeSamtykke,
			Tidspunkt:     v.Gitt.Format(timeFormat),
			PaVegneAv:     v.PaVegneAv,
			UtfortAv:      displayName(v.Av, identNavn),
			UtfortAvEnhet: displayUnit(v.Av, enhetNavn),
		}
	case participant.ImportertFraLegacy:
		return View{
			Type:      TypeImport,
			Tidspunkt: v.Importert.Format(timeFormat),
			UtfortAv:  systemName,
		}
	case participant.KoordinatorHandling:
		return View{
			Type:          TypeKoordinator,
			Tidspunkt:     v.Utfort.Format(timeFormat),
			Handling:      v.Handling,
			UtfortAv:      displayName(v.Av, identNavn),
			UtfortAvEnhet: displayUnit(v.Av, enhetNavn),
		}
	default:
		// The entry union is closed. A new variant must be handled here
		// before it can ship, so fail loudly rather than render a hole.
		panic(fmt.Sprintf("history: unhandled entry variant %T", e))
	}
}

const (
	timeFormat = "2006-01-02T15:04:05Z07:00"
	systemName = "System"
)

func (a *Aggregator) resolve(ctx context.Context, entries []participant.HistorikkEntry) (map[id.NavIdent]string, map[id.Enhetsnummer]string) {
	if a.resolver == nil {
		return nil, nil
	}

	seen := make(map[id.NavIdent]struct{})
	seenEnhet := make(map[id.Enhetsnummer]struct{})
	var identer []id.NavIdent
	var enheter []id.Enhetsnummer

	collect := func(av id.Actor) {
		if av.IsSystem() || av.Ident == "" {
			return
		}
		if _, ok := seen[av.Ident]; !ok {
			seen[av.Ident] = struct{}{}
			identer = append(identer, av.Ident)
		}
		if av.Enhet != "" {
			if _, ok := seenEnhet[av.Enhet]; !ok {
				seenEnhet[av.Enhet] = struct{}{}
				enheter = append(enheter, av.Enhet)
			}
		}
	}

	for _, e := range entries {
		switch v := e.(type) {
		case participant.Endring:
			collect(v.Av)
		case participant.VedtakFattet:
			collect(v.Av)
		case participant.SamtykkeGitt:
			collect(v.Av)
		case participant.KoordinatorHandling:
			collect(v.Av)
		case participant.ImportertFraLegacy:
			// machine write, nothing to resolve
		default:
			panic(fmt.Sprintf("history: unhandled entry variant %T", e))
		}
	}

	if len(identer) == 0 && len(enheter) == 0 {
		return nil, nil
	}

	identNavn, enhetNavn, err := a.resolver.ResolveNames(ctx, identer, enheter)
	if err != nil {
		a.logger.WarnContext(ctx, "name resolution failed, rendering raw identifiers", "error", err)
		return nil, nil
	}
	return identNavn, enhetNavn
}

func displayName(av id.Actor, navn map[id.NavIdent]string) string {
	if av.IsSystem() {
		return systemName
	}
	if n, ok := navn[av.Ident]; ok {
		return n
	}
	return string(av.Ident)
}

func displayUnit(av id.Actor, navn map[id.Enhetsnummer]string) string {
	if av.Enhet == "" {
		return ""
	}
	if n, ok := navn[av.Enhet]; ok {
		return n
	}
	return string(av.Enhet)
}
