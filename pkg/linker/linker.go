package linker

import (
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"

	"github.com/ethereum/go-ethereum/common"
)

// prefixLen is the width of the "0x" prefix. It is not part of the
// addressable bytes.
const prefixLen = 2

// ErrLinkOverflow is returned when a reference window falls outside the object code.
var ErrLinkOverflow = errors.New("link reference exceeds object code bounds")

// ErrInvalidReference is returned when a reference window is not address sized.
var ErrInvalidReference = errors.New("link reference is not address sized")

// LinkReference is a placeholder window inside object code, in bytes.
type LinkReference struct {
	Start  int `json:"start"`
	Length int `json:"length"`
}

// Reference is a LinkReference together with the address it resolves to.
type Reference struct {
	LinkReference
	Target common.Address
}

// OverflowError describes the first reference that did not fit the code.
type OverflowError struct {
	Ref       LinkReference
	CodeChars int
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("%s: window [%d,%d) chars, code has %d chars",
		ErrLinkOverflow, charStart(e.Ref), charStart(e.Ref)+charLen(e.Ref), e.CodeChars)
}

func (e *OverflowError) Unwrap() error { return ErrLinkOverflow }

// Link overwrites every reference window in objectCode with the lowercase hex
// encoding of its target address and returns the patched copy.
//
// All references are checked before anything is written, so an error always
// means no output. An empty reference list returns objectCode unchanged.
func Link(objectCode string, refs []Reference) (string, error) {
	if len(refs) == 0 {
		return objectCode, nil
	}

	for _, ref := range refs {
		if err := check(ref.LinkReference, len(objectCode)); err != nil {
			return "", err
		}
	}

	out := []byte(objectCode)
	for _, ref := range refs {
		start := charStart(ref.LinkReference)
		hex.Encode(out[start:start+charLen(ref.LinkReference)], ref.Target.Bytes())
	}
	return string(out), nil
}

func check(ref LinkReference, codeChars int) error {
	if ref.Start < 0 || ref.Length < 0 || charStart(ref)+charLen(ref) > codeChars {
		return &OverflowError{Ref: ref, CodeChars: codeChars}
	}
	if ref.Length != common.AddressLength {
		return fmt.Errorf("%w: %d bytes at offset %d", ErrInvalidReference, ref.Length, ref.Start)
	}
	return nil
}

func charStart(ref LinkReference) int { return prefixLen + ref.Start*2 }

func charLen(ref LinkReference) int { return ref.Length * 2 }

// placeholder matches solc library placeholders: __$<34 hex>$__ and the
// legacy __<path:Name>____ form.
var placeholder = regexp.MustCompile(`__\$[0-9a-fA-F]{34}\$__|__[^_][^_]{0,36}__`)

// Unresolved reports whether objectCode still carries library placeholders.
func Unresolved(objectCode string) bool {
	return placeholder.MatchString(objectCode)
}
