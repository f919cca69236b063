package model

import (
	"fmt"
	"strings"
)

// capabilityDescriptions maps client capability ids to the lines injected
// into the system prompt.
var capabilityDescriptions = map[string]string{
	"cublas":          "cuBLAS: GPU-accelerated linear algebra (BLAS) operations",
	"cuopt":           "cuOpt: GPU-accelerated combinatorial optimization and routing",
	"cuml":            "cuML: GPU-accelerated machine learning algorithms",
	"cudnn":           "cuDNN: GPU-accelerated deep neural network primitives",
	"tensorrt":        "TensorRT: high-performance deep learning inference optimizer",
	"cugraph":         "cuGraph: GPU-accelerated graph analytics",
	"websearch":       "Web Search: real-time internet search",
	"codeinterpreter": "Code Interpreter: ability to write and execute code",
	"rag":             "RAG: retrieval-augmented generation with document search",
	"vision":          "Vision: image understanding and analysis",
	"speech":          "Speech: voice recognition and synthesis",
	"fileio":          "File I/O: read and write files",
	"api":             "API Access: connect to external REST/GraphQL services",
	"database":        "Database: query structured data stores",
}

// BuildSystemPrompt assembles the system prompt for a session from its
// selected capabilities and model. Unknown capability ids are skipped.
func BuildSystemPrompt(capabilities []string, modelAlias string) string {
	lines := make([]string, 0, len(capabilities))
	for _, id := range capabilities {
		if desc, ok := capabilityDescriptions[id]; ok {
			lines = append(lines, "  - "+desc)
		}
	}
	caps := "  - General purpose assistant"
	if len(lines) > 0 {
		caps = strings.Join(lines, "\n")
	}

	info := Resolve(modelAlias)
	var b strings.Builder
	fmt.Fprintf(&b, "You are a capable autonomous assistant backed by %s.\n", info.DisplayName)
	b.WriteString("You have been equipped with the following capabilities:\n")
	b.WriteString(caps)
	b.WriteString("\n\n")
	b.WriteString("Answer the user's question directly. Be concise and technically accurate.\n")
	b.WriteString("Use your tools when they help; prefer reading files over guessing their contents.\n")
	return b.String()
}
