package domain

import dErrors "deltaker/pkg/domain-errors"

// Tiltakstype is the labor-market program type a run belongs to. The set is
// fixed domain knowledge; the reconciler additionally gates on a deployment-
// specific allow-list of enabled types.
type Tiltakstype string

const (
	TiltakArbeidsforberedendeTrening Tiltakstype = "ARBEIDSFORBEREDENDE_TRENING"
	TiltakAvklaring                  Tiltakstype = "AVKLARING"
	TiltakOppfolging                 Tiltakstype = "OPPFOLGING"
	TiltakDigitaltOppfolgingstiltak  Tiltakstype = "DIGITALT_OPPFOLGINGSTILTAK"
	TiltakGruppeAMO                  Tiltakstype = "GRUPPE_ARBEIDSMARKEDSOPPLAERING"
	TiltakGruppeFagYrke              Tiltakstype = "GRUPPE_FAG_OG_YRKESOPPLAERING"
	TiltakJobbklubb                  Tiltakstype = "JOBBKLUBB"
	TiltakVTA                        Tiltakstype = "VARIG_TILRETTELAGT_ARBEID_SKJERMET"
)

var validTiltakstyper = map[Tiltakstype]bool{
	TiltakArbeidsforberedendeTrening: true,
	TiltakAvklaring:                  true,
	TiltakOppfolging:                 true,
	TiltakDigitaltOppfolgingstiltak:  true,
	TiltakGruppeAMO:                  true,
	TiltakGruppeFagYrke:              true,
	TiltakJobbklubb:                  true,
	TiltakVTA:                        true,
}

// ParseTiltakstype validates a program type received from external input.
func ParseTiltakstype(s string) (Tiltakstype, error) {
	t := Tiltakstype(s)
	if !validTiltakstyper[t] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unsupported tiltakstype: "+s)
	}
	return t, nil
}

// Innsatsgruppe is the needs-assessment category assigned to the person. It
// only discriminates participation duration for the OPPFOLGING program type.
type Innsatsgruppe string

const (
	InnsatsStandard              Innsatsgruppe = "STANDARD_INNSATS"
	InnsatsSituasjonsbestemt     Innsatsgruppe = "SITUASJONSBESTEMT_INNSATS"
	InnsatsSpesieltTilpasset     Innsatsgruppe = "SPESIELT_TILPASSET_INNSATS"
	InnsatsGradertVarigTilpasset Innsatsgruppe = "GRADERT_VARIG_TILPASSET_INNSATS"
	InnsatsVarigTilpasset        Innsatsgruppe = "VARIG_TILPASSET_INNSATS"
)
