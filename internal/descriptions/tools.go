package descriptions

import "sort"

// Tool names
const (
	ToolExtractFile         = "plan_extract_file"
	ToolClassifyPages       = "plan_classify_pages"
	ToolValidateGroundTruth = "plan_validate_ground_truth"
	ToolCrossValidate       = "plan_cross_validate"
	ToolServerInfo          = "plan_server_info"
)

const (
	PlanExtractFileDescription = `Extract numbered rooms, door swings and dimensions from a construction plan set.

**When to use:** Need the room schedule of a vector PDF plan set (or of a recorded vector file) with a confidence score on every entity.

**Why it's useful:** Works on the drawing itself. Room labels are matched to the wall geometry around them, door arcs are fitted to circles and dimension strings are parsed to inches, then the same room seen on several sheets is merged into one record.

**Examples:**
• Room schedule: "Extract all rooms from plans/A-101.pdf"
• Door count: "How many swing doors are on the second floor plan of school-B.pdf?"
• Offline rerun: "Extract from plans/A-101.vectors.json with the recorded vectors"

**Output:** JSON document with rooms, doors, dimensions, page classifications, coverage (including what could not be seen, such as scanned sheets) and quality alerts.

**Best practices:** Check coverage.limitations and alerts before trusting counts. Rooms flagged SINGLE_SOURCE or LOW_CONFIDENCE deserve a manual look.`

	PlanClassifyPagesDescription = `Classify every sheet of a plan set as LEGEND, PLAN, DETAIL, ELEVATION or OTHER.

**When to use:** Before a full extraction on a large set, or to pick the sheets worth reading.

**Why it's useful:** Scores each page from title keywords (French and English, accents optional) and from the density of room labels, door arcs and dimensions.

**Examples:**
• Sheet index: "Which pages of plans/set.pdf are floor plans?"
• Sampling: "Select the 5 most useful pages of plans/set.pdf"

**Parameters:** select (optional) returns the best legend page followed by diversified plan pages, up to the requested count.`

	PlanValidateGroundTruthDescription = `Compare the rooms extracted from a plan set with a reference room list.

**When to use:** Measuring extraction quality on a project whose room schedule is known.

**Why it's useful:** Reports each reference room as EXACT, ID_ONLY, NAME_ONLY or NONE and computes recall, precision, field accuracy and F1. A reference list that is too short is reported INCONCLUSIVE instead of producing misleading numbers.

**Examples:**
• "Validate plans/A-101.pdf against plans/ground_truth.yaml"

**Ground truth format:** YAML or JSON with rooms: [{id, name, block, floor, type}].`

	PlanCrossValidateDescription = `Check that every extracted room id is mentioned in the project specification (devis).

**When to use:** Cross-checking plans against the written specification to find rooms missing from one of them.

**Why it's useful:** Searches the corpus for each id in its dashed, undashed and spaced spellings and tolerates one typo on long ids. Name-only hits are listed apart and never count as found.

**Examples:**
• "Cross-validate plans/A-101.pdf against devis/sections.yaml"

**Corpus format:** YAML or JSON sections [{code, title, content, page, subsections}] or plain text. Corpora below the minimum size are reported INCONCLUSIVE.`

	PlanServerInfoDescription = `Get server information, the configured directory and the available tools.

**When to use:** First call in a session, to learn which files can be read and which tools exist.

**Best practices:** All paths given to the other tools must be inside the configured directory. Relative paths are resolved from it.`
)

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	ToolExtractFile:         PlanExtractFileDescription,
	ToolClassifyPages:       PlanClassifyPagesDescription,
	ToolValidateGroundTruth: PlanValidateGroundTruthDescription,
	ToolCrossValidate:       PlanCrossValidateDescription,
	ToolServerInfo:          PlanServerInfoDescription,
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns the tool names in alphabetical order
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
