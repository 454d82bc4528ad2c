package generator

const treeSystemPrompt = "You are a document analysis expert. Generate precise, " +
	"well-structured hierarchical tree indexes from documents. " +
	"Output ONLY valid JSON, no markdown fences."

const treePromptTemplate = `You are analyzing a PDF document to generate a hierarchical tree index.
The document has %[1]d pages. Below is a sample of the document content.

%[2]s

%[3]s

Generate a hierarchical tree index as JSON. The tree should:
1. Have sections and subsections that capture the document's logical structure
2. Each node must specify accurate start_page and end_page (1-indexed)
3. Page ranges must not overlap between sibling nodes
4. Page ranges must cover all %[1]d pages collectively
5. Leaf nodes should cover no more than %[4]d pages each
6. Include a brief summary for each node (1-2 sentences)

Output ONLY a valid JSON object in this exact format:
{
    "title": "Document title",
    "description": "Brief description of the entire document",
    "sections": [
        {
            "title": "Section name",
            "start_page": 1,
            "end_page": 10,
            "summary": "What this section covers",
            "subsections": [
                {
                    "title": "Subsection name",
                    "start_page": 1,
                    "end_page": 5,
                    "summary": "What this subsection covers",
                    "subsections": []
                }
            ]
        }
    ]
}`

const tocPreamble = "The document has an existing Table of Contents:\n"

const tocInstruction = "\n\nUse this TOC as the basis for your tree structure."

const noTOCInstruction = "No Table of Contents was found. Analyze the content " +
	"to identify logical sections."

const summaryPromptTemplate = `Summarize the following document section in 1-2 concise sentences.
Focus on the key topics, data points, or arguments presented.

Section: %s (Pages %d-%d)

Content:
%s

Summary:`
