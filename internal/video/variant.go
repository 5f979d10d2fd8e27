package video

// Variant holds the user-facing texts of one summarizer front-end.
type Variant struct {
	Key               string
	AgentName         string
	PageTitle         string
	Title             string
	Header            string
	UploadLabel       string
	UploadHelp        string
	QueryLabel        string
	QueryPlaceholder  string
	QueryHelp         string
	ButtonLabel       string
	Spinner           string
	EmptyQueryWarning string
	NoFileInfo        string
	ResultHeading     string
	ErrorPrefix       string
}

// GeminiVariant is the multimodal front-end that sends the video itself.
var GeminiVariant = Variant{
	Key:               "gemini",
	AgentName:         "Video AI Summarizer",
	PageTitle:         "Multimodal AI agent - Video Summarizer",
	Title:             "Phi data video ai summarizer Agent",
	Header:            "powered by Gemini",
	UploadLabel:       "upload a video file",
	UploadHelp:        "upload a video for ai analysis",
	QueryLabel:        "What insights are you seeking from the video?",
	QueryPlaceholder:  "Ask anything about the video content. The AI agent will analyze and gather additional context if needed.",
	QueryHelp:         "Provide specific questions or insights you want from the video.",
	ButtonLabel:       "🔍 Analyze Video",
	Spinner:           "processing video and gathering insights",
	EmptyQueryWarning: "Please enter a question or insight to analyze the video.",
	NoFileInfo:        "Upload a video file to begin analysis.",
	ResultHeading:     "Analysis Result",
	ErrorPrefix:       "An error occurred during analysis: ",
}

// GroqVariant is the text-only front-end that only sees the file name.
var GroqVariant = Variant{
	Key:               "groq",
	AgentName:         "Groq Video Summarizer",
	PageTitle:         "🎥 Video Summarizer - Groq",
	Title:             "🎥 Video Summarizer Agent",
	Header:            "🚀 Powered by Groq + Llama + DuckDuckGo",
	UploadLabel:       "Upload a video file",
	UploadHelp:        "The filename will be used for analysis (not the actual video content).",
	QueryLabel:        "What insights are you seeking from the video?",
	QueryPlaceholder:  "Ask anything about the video...",
	ButtonLabel:       "🔍 Analyze Video",
	Spinner:           "Thinking with Groq...",
	EmptyQueryWarning: "Please enter a question.",
	NoFileInfo:        "📁 Upload a video file to get started.",
	ResultHeading:     "📊 Groq Analysis Result",
	ErrorPrefix:       "❌ Error during analysis: ",
}
