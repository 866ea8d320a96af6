package entity

import (
	"encoding/json"
	"time"
)

// AIProcessingLog records one AI engine invocation, successful or not
type AIProcessingLog struct {
	ID               int64           `json:"id"`
	RequestID        string          `json:"requestId"`
	EngineName       string          `json:"engineName"`
	EngineType       EngineType      `json:"engineType"`
	InputData        json.RawMessage `json:"inputData"`
	OutputData       json.RawMessage `json:"outputData"`
	ConfidenceScore  *float64        `json:"confidenceScore,omitempty"`
	ProcessingTimeMs int64           `json:"processingTimeMs"`
	Success          bool            `json:"success"`
	ErrorMessage     string          `json:"errorMessage,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// ClassificationResult is an AI engine's categorisation of a request
type ClassificationResult struct {
	Category            Category `json:"category"`
	Priority            Priority `json:"priority"`
	Confidence          float64  `json:"confidence"`
	Reasoning           string   `json:"reasoning"`
	SuggestedDepartment string   `json:"suggestedDepartment,omitempty"`
}

// HandlingResult is an AI engine's recommendation for resolving a request
type HandlingResult struct {
	RecommendedAction         string  `json:"recommendedAction"`
	EstimatedResolutionTime   string  `json:"estimatedResolutionTime,omitempty"`
	Confidence                float64 `json:"confidence"`
	Reasoning                 string  `json:"reasoning"`
	RequiresHumanIntervention bool    `json:"requiresHumanIntervention"`
}
