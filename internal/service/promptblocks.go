package service

import "encoding/json"

// PromptBlock is a named, independently composable unit of the analysis
// prompt. Each block contributes an instruction fragment to the prompt's JSON
// skeleton, a schema fragment for validating the model output, and the
// top-level result keys it produces.
type PromptBlock struct {
	ID           string
	Title        string
	Description  string
	Instruction  string
	SchemaPart   json.RawMessage
	RequiredKeys []string
}

// DefaultBlockOrder is the block set used when a request supplies none.
var DefaultBlockOrder = []string{
	"executive_summary",
	"general_comments",
	"strengths_weaknesses",
	"key_points",
	"coding_challenge",
	"technologies",
	"thinking_process",
	"qa_topics",
	"statistics",
}

// AvailableBlocks registers every block by id.
var AvailableBlocks = map[string]PromptBlock{}

func init() {
	for _, b := range allBlocks {
		AvailableBlocks[b.ID] = b
	}
}

var allBlocks = []PromptBlock{
	{
		ID:          "executive_summary",
		Title:       "Executive Summary",
		Description: "Concise high-level overview for hiring managers.",
		Instruction: `  "executiveSummary": "2-3 sentences summarizing the candidate's overall suitability, key strengths, and potential fit."`,
		SchemaPart: json.RawMessage(`{
			"executiveSummary": {"type": "string"}
		}`),
		RequiredKeys: []string{"executiveSummary"},
	},
	{
		ID:          "general_comments",
		Title:       "General Comments",
		Description: "Overall tone, attitude, structure, and platform details.",
		Instruction: `  "generalComments": {
    "howInterview": "Explain the overall tone and nature of the conversation",
    "attitude": "Describe the demeanor and style of the interviewer",
    "structure": "Detail segments and approximate duration using transcript timestamps",
    "platform": "Identify the meeting tool and exact coding environment/platform"
  }`,
		SchemaPart: json.RawMessage(`{
			"generalComments": {
				"type": "object",
				"properties": {
					"howInterview": {"type": "string"},
					"attitude": {"type": "string"},
					"structure": {"type": "string"},
					"platform": {"type": "string"}
				},
				"required": ["howInterview", "attitude", "structure", "platform"]
			}
		}`),
		RequiredKeys: []string{"generalComments"},
	},
	{
		ID:          "strengths_weaknesses",
		Title:       "Strengths & Growth Areas",
		Description: "Balanced view of top qualities and areas for improvement.",
		Instruction: `  "strengthsWeaknesses": {
    "strengths": ["Strength 1", "Strength 2", "Strength 3"],
    "weaknesses": ["Growth Area 1", "Growth Area 2", "Growth Area 3"]
  }`,
		SchemaPart: json.RawMessage(`{
			"strengthsWeaknesses": {
				"type": "object",
				"properties": {
					"strengths": {"type": "array", "items": {"type": "string"}},
					"weaknesses": {"type": "array", "items": {"type": "string"}}
				},
				"required": ["strengths", "weaknesses"]
			}
		}`),
		RequiredKeys: []string{"strengthsWeaknesses"},
	},
	{
		ID:          "key_points",
		Title:       "Key Technical Points",
		Description: "3-5 key technical points emphasized by the interviewer.",
		Instruction: `  "keyPoints": [
    {
      "title": "Dynamically Generated Key Point 1",
      "content": "Summary and explanation of the point"
    },
    {
      "title": "Dynamically Generated Key Point 2",
      "content": "Summary and explanation of the point"
    }
  ]`,
		SchemaPart: json.RawMessage(`{
			"keyPoints": {
				"type": "array",
				"items": {
					"type": "object",
					"properties": {
						"title": {"type": "string"},
						"content": {"type": "string"}
					},
					"required": ["title", "content"]
				}
			}
		}`),
		RequiredKeys: []string{"keyPoints"},
	},
	{
		ID:          "coding_challenge",
		Title:       "Coding Challenge",
		Description: "Details about the coding task, follow-ups, and required knowledge.",
		Instruction: `  "codingChallenge": {
    "coreExercise": "Briefly describe the main coding task",
    "followUp": "Identify the most challenging extension or abstraction",
    "knowledge": "Programming Language: X, Framework/Library: Y, Core Concepts: Z. INFER technologies based on context."
  }`,
		SchemaPart: json.RawMessage(`{
			"codingChallenge": {
				"type": "object",
				"properties": {
					"coreExercise": {"type": "string"},
					"followUp": {"type": "string"},
					"knowledge": {"type": "string"}
				},
				"required": ["coreExercise", "followUp", "knowledge"]
			}
		}`),
		RequiredKeys: []string{"codingChallenge"},
	},
	{
		ID:          "technologies",
		Title:       "Technologies",
		Description: "List of technologies mentioned with timestamps.",
		Instruction: `  "technologies": [
    {
      "name": "TypeScript",
      "timestamps": "17:33-25:45"
    },
    {
      "name": "React",
      "timestamps": "09:32-15:20"
    }
  ]`,
		SchemaPart: json.RawMessage(`{
			"technologies": {
				"type": "array",
				"items": {
					"type": "object",
					"properties": {
						"name": {"type": "string"},
						"timestamps": {"type": "string"}
					},
					"required": ["name", "timestamps"]
				}
			}
		}`),
		RequiredKeys: []string{"technologies"},
	},
	{
		ID:          "thinking_process",
		Title:       "Thinking Process",
		Description: "Analysis of problem-solving approach and logic.",
		Instruction: `  "thinkingProcess": {
    "methodology": "How they approach problems (e.g., STAR, First Principles)",
    "edgeCaseHandling": "Score 1-10 on their ability to identify edge cases",
    "edgeCaseExplanation": "Brief explanation of edge case scoring",
    "structureScore": "Score 1-10 on the logical flow of their answers",
    "structureExplanation": "Brief explanation of structure scoring"
  }`,
		SchemaPart: json.RawMessage(`{
			"thinkingProcess": {
				"type": "object",
				"properties": {
					"methodology": {"type": "string"},
					"edgeCaseHandling": {"type": "integer"},
					"edgeCaseExplanation": {"type": "string"},
					"structureScore": {"type": "integer"},
					"structureExplanation": {"type": "string"}
				},
				"required": ["methodology", "edgeCaseHandling", "edgeCaseExplanation", "structureScore", "structureExplanation"]
			}
		}`),
		RequiredKeys: []string{"thinkingProcess"},
	},
	{
		ID:          "qa_topics",
		Title:       "Q&A Topics",
		Description: "Non-technical and situational Q&A topics.",
		Instruction: `  "qaTopics": [
    {
      "title": "Dynamically Generated Q&A Topic 1",
      "content": "Summary and details"
    },
    {
      "title": "Dynamically Generated Q&A Topic 2",
      "content": "Summary and details"
    }
  ]`,
		SchemaPart: json.RawMessage(`{
			"qaTopics": {
				"type": "array",
				"items": {
					"type": "object",
					"properties": {
						"title": {"type": "string"},
						"content": {"type": "string"}
					},
					"required": ["title", "content"]
				}
			}
		}`),
		RequiredKeys: []string{"qaTopics"},
	},
	{
		ID:          "statistics",
		Title:       "Statistics",
		Description: "Quantitative analysis of the interview.",
		Instruction: `  "statistics": {
    "duration": "74:13",
    "technicalTime": "60:00 (81%)",
    "qaTime": "10:00 (13%)",
    "technicalQuestions": 2,
    "followUpQuestions": 5,
    "technologiesCount": 8,
    "complexity": "Intermediate",
    "pace": "Moderate",
    "engagement": 8,
    "communicationScore": 85,
    "communicationScoreExplanation": "Candidate was articulate but occasionally rambled.",
    "technicalDepthScore": 78,
    "technicalDepthScoreExplanation": "Strong knowledge of React internals but struggled with complex SQL queries.",
    "engagementScore": 80,
    "engagementScoreExplanation": "Active listener, asked insightful questions about the team structure."
  }`,
		SchemaPart: json.RawMessage(`{
			"statistics": {
				"type": "object",
				"properties": {
					"duration": {"type": "string"},
					"technicalTime": {"type": "string"},
					"qaTime": {"type": "string"},
					"technicalQuestions": {"type": "integer"},
					"followUpQuestions": {"type": "integer"},
					"technologiesCount": {"type": "integer"},
					"complexity": {"type": "string"},
					"pace": {"type": "string"},
					"engagement": {"type": "integer"},
					"communicationScore": {"type": "integer"},
					"communicationScoreExplanation": {"type": "string"},
					"technicalDepthScore": {"type": "integer"},
					"technicalDepthScoreExplanation": {"type": "string"},
					"engagementScore": {"type": "integer"},
					"engagementScoreExplanation": {"type": "string"}
				},
				"required": [
					"duration", "technicalTime", "qaTime", "technicalQuestions",
					"followUpQuestions", "technologiesCount", "complexity", "pace",
					"engagement", "communicationScore", "communicationScoreExplanation",
					"technicalDepthScore", "technicalDepthScoreExplanation",
					"engagementScore", "engagementScoreExplanation"
				]
			}
		}`),
		RequiredKeys: []string{"statistics"},
	},
}
