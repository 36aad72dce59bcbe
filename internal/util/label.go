package util

import "fmt"

// Label kinds for synthetic control-flow label names, used by the
// front-end when it synthesizes if/while/jump targets it then emits as
// OP_label/OP_branch/OP_jump operands.
const (
	LabelWhileHead = iota
	LabelWhileEnd
	LabelIf
	LabelIfElse
	LabelIfEnd
	LabelIfElseEnd
	LabelJump
)

var labelPrefixes = [...]string{
	"_WHEAD",
	"_WEND",
	"_IF",
	"_IFELSE",
	"_IFEND",
	"_IFELSEEND",
	"_JMP",
}

// LabelAllocator hands out unique label names per kind. The core runs
// single-threaded (spec.md §5), so unlike the teacher's channel-based
// util.ListenLabel this is a plain counter, not a goroutine.
type LabelAllocator struct {
	seq [len(labelPrefixes)]int
}

// Next returns a fresh label name of the given kind.
func (l *LabelAllocator) Next(kind int) string {
	n := l.seq[kind]
	l.seq[kind]++
	return fmt.Sprintf("%s_%03d", labelPrefixes[kind], n)
}
