// internal/instruction/structure.go
package instruction

import (
	"math/bits"
	"regexp"
	"strings"
)

// Segment is one of the three parts an instruction must contain, in order.
type Segment string

const (
	SegmentFileList Segment = "file list"
	SegmentSteps    Segment = "numbered steps"
	SegmentTestPlan Segment = "test plan"
)

var segmentOrder = []Segment{SegmentFileList, SegmentSteps, SegmentTestPlan}

var segmentPatterns = map[Segment]*regexp.Regexp{
	SegmentFileList: regexp.MustCompile(`^\s*[-*•+]\s+\S`),
	SegmentSteps:    regexp.MustCompile(`^\s*\d+[.)]\s+\S`),
	SegmentTestPlan: regexp.MustCompile(`(?i)^\s*(#+\s*|\*\*)?test(ing)?\s+plan\b`),
}

// Structure is the outcome of CheckStructure. Missing segments have no
// matching line at all; OutOfOrder segments are present but sit before a
// segment that should precede them.
type Structure struct {
	Missing    []Segment
	OutOfOrder []Segment
}

// OK reports whether every segment is present and in order.
func (s Structure) OK() bool {
	return len(s.Missing) == 0 && len(s.OutOfOrder) == 0
}

// Warnings renders the problems as short operator-facing lines.
func (s Structure) Warnings() []string {
	var out []string
	for _, seg := range s.Missing {
		out = append(out, "missing "+string(seg))
	}
	for _, seg := range s.OutOfOrder {
		out = append(out, string(seg)+" out of order")
	}
	return out
}

// StructureError is returned in strict mode when an instruction is incomplete
// or its segments are out of order.
type StructureError struct {
	Missing    []Segment
	OutOfOrder []Segment
}

func (e *StructureError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "instruction is missing: "+joinSegments(e.Missing))
	}
	if len(e.OutOfOrder) > 0 {
		parts = append(parts, "instruction has segments out of order: "+joinSegments(e.OutOfOrder))
	}
	return strings.Join(parts, "; ")
}

func joinSegments(segs []Segment) string {
	names := make([]string, len(segs))
	for i, s := range segs {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

// CheckStructure locates the first line of each segment independently. A
// segment with no matching line is missing. Among the present ones, the
// largest set already in the expected order is kept and the rest are
// reported as out of order; ties keep the earlier segments.
func CheckStructure(text string) Structure {
	first := make([]int, len(segmentOrder))
	for i := range first {
		first[i] = -1
	}
	for n, line := range strings.Split(text, "\n") {
		for i, seg := range segmentOrder {
			if first[i] < 0 && segmentPatterns[seg].MatchString(line) {
				first[i] = n
			}
		}
	}

	var res Structure
	present := 0
	for i, seg := range segmentOrder {
		if first[i] < 0 {
			res.Missing = append(res.Missing, seg)
			continue
		}
		present |= 1 << i
	}

	best := 0
	for mask := 1; mask <= present; mask++ {
		if mask&^present != 0 || !ascending(first, mask) {
			continue
		}
		if bits.OnesCount(uint(mask)) > bits.OnesCount(uint(best)) {
			best = mask
		}
	}
	for i, seg := range segmentOrder {
		if present&(1<<i) != 0 && best&(1<<i) == 0 {
			res.OutOfOrder = append(res.OutOfOrder, seg)
		}
	}
	return res
}

// ascending reports whether the segments selected by mask start on strictly
// increasing lines.
func ascending(first []int, mask int) bool {
	last := -1
	for i, line := range first {
		if mask&(1<<i) == 0 {
			continue
		}
		if line <= last {
			return false
		}
		last = line
	}
	return true
}
