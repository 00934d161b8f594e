package options

import "fmt"

// Stage is the pipeline role of a shader
type Stage int

const (
	// InferFromSource leaves the stage to the compiler, which reads it from a
	// `#pragma shader_stage(...)` in the source
	InferFromSource Stage = iota
	Vertex
	Fragment
	Compute
	Geometry
	TessControl
	TessEvaluation
	SpirvAssembly
	RayGeneration
	AnyHit
	ClosestHit
	Miss
	Intersection
	Callable
	Task
	Mesh
)

// stageExtensions lists every stage by its file extension, in enum order
var stageExtensions = []string{
	Vertex:         "vert",
	Fragment:       "frag",
	Compute:        "comp",
	Geometry:       "geom",
	TessControl:    "tesc",
	TessEvaluation: "tese",
	SpirvAssembly:  "spvasm",
	RayGeneration:  "rgen",
	AnyHit:         "rahit",
	ClosestHit:     "rchit",
	Miss:           "rmiss",
	Intersection:   "rint",
	Callable:       "rcall",
	Task:           "task",
	Mesh:           "mesh",
}

// String returns the file extension naming the stage
func (s Stage) String() string {
	if s > InferFromSource && int(s) < len(stageExtensions) {
		return stageExtensions[s]
	}

	return "infer"
}

// StageFromExtension maps a file extension (without the dot) to a stage
func StageFromExtension(ext string) (Stage, bool) {
	for s, name := range stageExtensions {
		if name != "" && name == ext {
			return Stage(s), true
		}
	}

	return InferFromSource, false
}

// OptimizationLevel selects how aggressively the compiler optimizes
type OptimizationLevel int

const (
	Zero OptimizationLevel = iota
	Size
	Performance
)

var optimizationNames = map[string]OptimizationLevel{
	"zero":        Zero,
	"size":        Size,
	"performance": Performance,
}

func (l OptimizationLevel) String() string {
	switch l {
	case Zero:
		return "zero"
	case Size:
		return "size"
	case Performance:
		return "performance"
	default:
		return fmt.Sprintf("OptimizationLevel(%d)", int(l))
	}
}

// ParseOptimization maps an optimization name to its level
func ParseOptimization(name string) (OptimizationLevel, bool) {
	l, ok := optimizationNames[name]
	return l, ok
}

// Target versions pack a major/minor pair: the major version sits above bit
// 22 and the minor version in the 10-bit field starting at bit 12.
const (
	targetMajorShift = 22
	targetMinorShift = 12
	targetMinorMask  = 0x3ff

	// DefaultTargetVersion is Vulkan 1.0
	DefaultTargetVersion uint32 = 1 << targetMajorShift
)

// TargetVersion packs a Vulkan major/minor version
func TargetVersion(major, minor uint32) uint32 {
	return major<<targetMajorShift | (minor&targetMinorMask)<<targetMinorShift
}

// SplitTargetVersion unpacks a value built by TargetVersion
func SplitTargetVersion(v uint32) (major, minor uint32) {
	return v >> targetMajorShift, (v >> targetMinorShift) & targetMinorMask
}

var targetNames = map[string]uint32{
	"vulkan":    TargetVersion(1, 0),
	"vulkan1_0": TargetVersion(1, 0),
	"vulkan1_1": TargetVersion(1, 1),
	"vulkan1_2": TargetVersion(1, 2),
	"vulkan1_3": TargetVersion(1, 3),
}

// ParseTarget maps a target environment name to its packed version
func ParseTarget(name string) (uint32, bool) {
	v, ok := targetNames[name]
	return v, ok
}

// TargetName returns the option-list spelling of a packed version
func TargetName(v uint32) string {
	major, minor := SplitTargetVersion(v)
	return fmt.Sprintf("vulkan%d_%d", major, minor)
}
