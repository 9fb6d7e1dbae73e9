package affiliates

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"siges/internal/util"
)

// ValidationError is one message attributed to a file line. Row errors use
// the 1-based physical line, so the first data row is line 2.
type ValidationError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return e.Message
}

var (
	reShortCode   = regexp.MustCompile(`^[A-Za-z]{1,3}$`)
	reShortLetter = regexp.MustCompile(`^[A-Za-z]{1,5}$`)
	reEPSCode     = regexp.MustCompile(`^[A-Z0-9]{1,6}$`)
)

type Validator struct {
	vocab *Vocabulary
}

func NewValidator(vocab *Vocabulary) *Validator {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	return &Validator{vocab: vocab}
}

// ValidateRow runs every check independently and returns all messages in
// check order. An empty result means the row is valid.
func (v *Validator) ValidateRow(row RawRow, required ColumnSet, line int) []ValidationError {
	var errs []ValidationError
	add := func(format string, args ...any) {
		errs = append(errs, ValidationError{
			Line:    line,
			Message: fmt.Sprintf("Row %d: ", line) + fmt.Sprintf(format, args...),
		})
	}

	for _, col := range required.Sorted() {
		if !row.Has(col) {
			add("%s is required", col)
		}
	}

	if doc := row.Get(ColTipoDocumento); doc != "" {
		if util.IsDigits(doc) {
			add("TIPO_DOCUMENTO must not be numeric (%q)", doc)
		}
		if !reShortCode.MatchString(doc) {
			add("TIPO_DOCUMENTO has an invalid format (%q)", doc)
		}
		if !v.vocab.HasIdentificationType(doc) {
			add("TIPO_DOCUMENTO %q is not a valid identification type", doc)
		}
	}

	if sex := row.Get(ColSexo); sex != "" {
		if util.IsDigits(sex) {
			add("SEXO must not be numeric (%q)", sex)
		}
		if !reShortLetter.MatchString(sex) {
			add("SEXO must be 1 to 5 letters (%q)", sex)
		}
	}

	if state := row.Get(ColEstado); state != "" {
		if util.IsDigits(state) {
			add("ESTADO must not be numeric (%q)", state)
		}
		if !reShortCode.MatchString(state) {
			add("ESTADO has an invalid format (%q)", state)
		}
		if !v.vocab.HasStatus(state) {
			add("ESTADO %q is not a valid status", state)
		}
	}

	if id := row.Get(ColIdentificacion); id != "" {
		if !util.IsDigits(id) {
			add("IDENTIFICACION must contain only digits (%q)", id)
		}
		if n := len(id); n < 5 || n > 20 {
			add("IDENTIFICACION must have between 5 and 20 characters (got %d)", n)
		}
	}

	if birth := row.Get(ColFechaNacimiento); birth != "" {
		if _, ok := ToISODate(birth); !ok {
			add("FECHA_NACIMIENTO invalid format, expected dd/mm/yyyy (%q)", birth)
		}
	}

	if lma := row.Get(ColLMA); lma != "" {
		if !reDecimal.MatchString(normalizeDecimalText(lma)) {
			add("LMA must be a number (%q)", lma)
		}
	}

	if pop := row.Get(ColTipoPoblacion); pop != "" {
		if !util.IsDigits(pop) {
			add("TIPO_POBLACION must contain only digits (%q)", pop)
		} else if id, err := strconv.Atoi(pop); err != nil || !v.vocab.HasPopulationType(id) {
			add("TIPO_POBLACION %q is not a valid population type", pop)
		}
	}

	if zone := row.Get(ColZona); zone != "" {
		if util.IsDigits(zone) {
			add("ZONA must not be numeric (%q)", zone)
		}
		if !reShortLetter.MatchString(zone) {
			add("ZONA must be 1 to 5 letters (%q)", zone)
		}
		if !v.vocab.HasArea(zone) {
			add("ZONA %q is not a valid area", zone)
		}
	}

	if eps := strings.ToUpper(row.Get(ColEPS)); eps != "" {
		if !reEPSCode.MatchString(eps) {
			add("EPS has an invalid format (%q)", eps)
		}
		if !v.vocab.HasEPS(eps) {
			add("EPS %q is not a valid EPS code", eps)
		}
	}

	return errs
}
