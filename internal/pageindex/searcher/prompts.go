package searcher

const searchSystemPrompt = "You are a precise document navigation assistant. " +
	"Analyze section summaries to find relevant content. " +
	"Output ONLY valid JSON."

const evaluatePromptTemplate = `You are a document navigation expert. Given a user's question, evaluate which document sections are most likely to contain the answer.

Question: %[1]s

%[2]s

Available sections at this level:
%[3]s

Evaluate EACH section and decide if it likely contains information relevant to the question.

Output a JSON array with one object per section, in the SAME ORDER as listed above:
[
    {
        "node_id": "section_id",
        "selected": true,
        "reasoning": "Brief explanation of why this section is or isn't relevant",
        "confidence": 0.0
    }
]

Rules:
1. Select at most %[4]d sections (prioritize the most relevant)
2. A section is relevant if its summary suggests it contains information needed to answer the question
3. If unsure, include the section (better to retrieve too broadly than miss relevant content)
4. confidence is 0.0-1.0 indicating how sure you are this section is relevant
5. Output ONLY valid JSON, no markdown fences`

const navigationTemplate = "Navigation path so far: %s\n" +
	"(You are now looking at the children of the last section)"
