// Package codegen composes canonical document codes. Composition is pure:
// the same inputs always yield the same code, and no counter is consumed here.
package codegen

import "fmt"

// Separators define the characters between code segments.
type Separators struct {
	MachineGroup string // between MMM and GGGG
	GroupSeq     string // between GGGG (or MMM) and the number block
	VariantSeq   string // between VVV and the sequence
}

// DefaultSeparators matches the canonical grammar: MMM_GGGG-VVV-0000.
func DefaultSeparators() Separators {
	return Separators{MachineGroup: "_", GroupSeq: "-", VariantSeq: "-"}
}

// Composer renders codes with a fixed separator set.
type Composer struct {
	Seps Separators
}

// NewComposer returns a composer with the given separators.
func NewComposer(seps Separators) Composer {
	return Composer{Seps: seps}
}

// PartCode renders a part or assembly code: MMM_GGGG-0000, or
// MMM_GGGG-VVV-0000 when a variant is present. Assemblies share the grammar;
// only the counter direction differs.
func (c Composer) PartCode(machine, group, variant string, seq, width int) string {
	n := pad(seq, width)
	if variant != "" {
		return machine + c.Seps.MachineGroup + group + c.Seps.GroupSeq + variant + c.Seps.VariantSeq + n
	}
	return machine + c.Seps.MachineGroup + group + c.Seps.GroupSeq + n
}

// MachineCode renders a machine version code: MMM-V0001.
func (c Composer) MachineCode(machine string, version, width int) string {
	return machine + c.Seps.GroupSeq + "V" + pad(version, width)
}

// GroupCode renders a group version code: MMM_GGGG-V0001.
func (c Composer) GroupCode(machine, group string, version, width int) string {
	return machine + c.Seps.MachineGroup + group + c.Seps.GroupSeq + "V" + pad(version, width)
}

// InRevTag names the working copy of a document under revision,
// e.g. QQQ_1000-0001_R02__INREV.
func InRevTag(code string, revision int) string {
	return fmt.Sprintf("%s_R%02d__INREV", code, revision)
}

// RevTag names an archived released revision, e.g. QQQ_1000-0001_R02.
func RevTag(code string, revision int) string {
	return fmt.Sprintf("%s_R%02d", code, revision)
}

func pad(n, width int) string {
	return fmt.Sprintf("%0*d", width, n)
}
