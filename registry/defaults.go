package registry

// Categories of the built-in catalog.
const (
	CategoryAIAnalysis    = "ai_analysis"
	CategoryAIVisual      = "ai_visual"
	CategoryAIEnhancement = "ai_enhancement"
	CategoryAICanvas      = "ai_canvas"
	CategoryFormatting    = "formatting"
	CategoryDataTransfer  = "data_transfer"
)

// Defaults returns the built-in event catalog.
func Defaults() []Definition {
	return []Definition{
		{
			EventType:   "structuring_diagnose",
			Description: "Problem analysis in Structuring",
			Category:    CategoryAIAnalysis,
			BaseCost:    10,
			Endpoint:    "/api/structuring/diagnose",
			Complexity:  &Bounds{Min: 1.0, Max: 2.5},
			Features:    map[string]int64{"echo": 5, "traceback": 3},
		},
		{
			EventType:   "structuring_generate_solution",
			Description: "Solution generation with optional enhancements",
			Category:    CategoryAIAnalysis,
			BaseCost:    15,
			Endpoint:    "/api/structuring/generate-solution",
			Features:    map[string]int64{"echo": 5, "traceback": 3},
		},
		{EventType: "visuals_planning", Description: "Visual planning generation", Category: CategoryAIVisual, BaseCost: 8, Endpoint: "/api/visuals/planning"},
		{EventType: "visuals_sketch", Description: "Visual sketch creation", Category: CategoryAIVisual, BaseCost: 12, Endpoint: "/api/visuals/sketch"},
		{EventType: "solutioning_image_analysis", Description: "Image analysis in Solutioning", Category: CategoryAIAnalysis, BaseCost: 8, Endpoint: "/api/solutioning/image-analysis"},
		{EventType: "solutioning_ai_enhance", Description: "AI enhancement in Solutioning", Category: CategoryAIEnhancement, BaseCost: 12, Endpoint: "/api/solutioning/ai-enhance"},
		{EventType: "solutioning_structure_solution", Description: "Structure solution generation", Category: CategoryAIAnalysis, BaseCost: 15, Endpoint: "/api/solutioning/structure-solution"},
		{
			EventType:   "solutioning_node_stack",
			Description: "Per node stack generation",
			Category:    CategoryAIAnalysis,
			BaseCost:    6,
			Endpoint:    "/api/solutioning/node-stack",
			Complexity:  &Bounds{Min: 1.0, Max: 3.0},
		},
		{EventType: "solutioning_formatting", Description: "Solution formatting", Category: CategoryFormatting, BaseCost: 5, Endpoint: "/api/solutioning/formatting"},
		{EventType: "solutioning_hyper_canvas", Description: "Hyper-canvas usage", Category: CategoryAICanvas, BaseCost: 10, Endpoint: "/api/solutioning/hyper-canvas"},
		{EventType: "push_structuring_to_visuals", Description: "Push data from Structuring to Visuals", Category: CategoryDataTransfer, BaseCost: 3, Endpoint: "/api/push/structuring-to-visuals"},
		{EventType: "push_visuals_to_solutioning", Description: "Push data from Visuals to Solutioning", Category: CategoryDataTransfer, BaseCost: 3, Endpoint: "/api/push/visuals-to-solutioning"},
		{EventType: "push_solutioning_to_sow", Description: "Push data from Solutioning to SoW", Category: CategoryDataTransfer, BaseCost: 5, Endpoint: "/api/push/solutioning-to-sow"},
		{EventType: "push_sow_to_loe", Description: "Push data from SoW to LoE", Category: CategoryDataTransfer, BaseCost: 5, Endpoint: "/api/push/sow-to-loe"},
	}
}
