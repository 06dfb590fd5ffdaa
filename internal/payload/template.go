package payload

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"txbatcher/internal/runerr"
)

// ErrRangeExhausted is returned by Next once every value of the range has
// been produced. It is the normal end of a ranged run, not a failure.
var ErrRangeExhausted = errors.New("payload range exhausted")

// rangePattern matches a bracketed "start-end" pair. Bounds are captured
// loosely so that "[a-5]" is reported as malformed instead of being ignored.
var rangePattern = regexp.MustCompile(`\[([^\[\]\-]*)-([^\[\]]*)\]`)

// Templater expands the transaction data template.
//
// A template such as `data:,{"p":"ins","amt":"[1-500]"}` yields one payload
// per value of the range, in ascending order. A template without a range
// yields the same bytes on every call. Templates starting with 0x are hex
// data, anything else is sent as its UTF-8 bytes.
type Templater struct {
	template    string
	placeholder string
	hex         bool

	ranged  bool
	current uint64
	end     uint64
	done    bool

	static []byte
}

// New parses the template. Malformed ranges and invalid hex fail here so
// that a run never stops halfway on a bad template.
func New(template string) (*Templater, error) {
	if template == "" {
		return nil, fmt.Errorf("%w: payload template is empty", runerr.ErrConfig)
	}

	t := &Templater{
		template: template,
		hex:      hasHexPrefix(template),
	}

	match := rangePattern.FindStringSubmatch(template)
	if match == nil {
		data, err := t.encode(template)
		if err != nil {
			return nil, err
		}
		t.static = data
		return t, nil
	}

	start, err := strconv.ParseUint(strings.TrimSpace(match[1]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid range start in %q", runerr.ErrConfig, match[0])
	}
	end, err := strconv.ParseUint(strings.TrimSpace(match[2]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid range end in %q", runerr.ErrConfig, match[0])
	}
	if start > end {
		return nil, fmt.Errorf("%w: range start %d is greater than end %d", runerr.ErrConfig, start, end)
	}

	t.ranged = true
	t.placeholder = match[0]
	t.current = start
	t.end = end

	// Both bounds must encode; the rest of the template is identical for
	// every value in between.
	for _, v := range []uint64{start, end} {
		if _, err := t.encode(t.render(v)); err != nil {
			return nil, err
		}
	}

	return t, nil
}

// Next returns the payload for the next transaction.
func (t *Templater) Next() ([]byte, error) {
	if !t.ranged {
		out := make([]byte, len(t.static))
		copy(out, t.static)
		return out, nil
	}
	if t.done {
		return nil, ErrRangeExhausted
	}

	data, err := t.encode(t.render(t.current))
	if err != nil {
		return nil, err
	}

	if t.current == t.end {
		t.done = true
	} else {
		t.current++
	}
	return data, nil
}

// Ranged reports whether the template carries a range placeholder
func (t *Templater) Ranged() bool {
	return t.ranged
}

// Remaining returns how many payloads are left, saturating at MaxUint64 for
// the full uint64 range. ok is false for templates without a range, which
// never run out.
func (t *Templater) Remaining() (n uint64, ok bool) {
	if !t.ranged {
		return 0, false
	}
	if t.done {
		return 0, true
	}
	n = t.end - t.current
	if n == math.MaxUint64 {
		// the full uint64 range holds one value more than fits
		return n, true
	}
	return n + 1, true
}

// Template returns the raw template string
func (t *Templater) Template() string {
	return t.template
}

func (t *Templater) render(v uint64) string {
	return strings.Replace(t.template, t.placeholder, strconv.FormatUint(v, 10), 1)
}

func (t *Templater) encode(text string) ([]byte, error) {
	if !t.hex {
		return []byte(text), nil
	}

	digits := text[2:]
	if len(digits)%2 == 1 {
		digits = "0" + digits
	}
	data, err := hexutil.Decode("0x" + digits)
	if err != nil {
		return nil, fmt.Errorf("%w: payload is not valid hex: %v", runerr.ErrConfig, err)
	}
	return data, nil
}

func hasHexPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}
