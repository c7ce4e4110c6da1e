package models

import (
	"encoding/json"
	"time"
)

// TaskStatus is the lifecycle state of a background analysis task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// Terminal reports whether the status is final. Terminal tasks are never
// polled again.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// SearchType selects the depth of an analysis run.
type SearchType string

const (
	SearchQuick SearchType = "quick"
	SearchDeep  SearchType = "deep"
)

// Task is a backend-tracked asynchronous analysis job initiated from the
// console. The backend is the source of truth; the local copy is a polled
// projection of it.
type Task struct {
	ID             string          `json:"id"`
	Keyword        string          `json:"keyword"`
	SearchType     SearchType      `json:"searchType"`
	SelectedModels []string        `json:"selectedModels"` // ordered, no duplicates
	CostUnits      int             `json:"costUnits"`
	UsageDate      string          `json:"usageDate,omitempty"`
	Status         TaskStatus      `json:"status"`
	Progress       int             `json:"progress"` // 0-100
	Logs           []string        `json:"logs"`     // append-only, newest last
	Result         json.RawMessage `json:"result,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// FailureReason returns the last log line of a failed task, which the
// backend uses to carry the failure message.
func (t *Task) FailureReason() string {
	if t.Status != TaskFailed || len(t.Logs) == 0 {
		return ""
	}
	return t.Logs[len(t.Logs)-1]
}

// Role is the access level of an account.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Plan is the subscription tier of an account.
type Plan string

const (
	PlanFree       Plan = "FREE"
	PlanPro        Plan = "PRO"
	PlanEnterprise Plan = "ENTERPRISE"
)

// AuthUser is the authenticated account attached to the current session.
type AuthUser struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	Role        Role   `json:"role"`
	Plan        Plan   `json:"plan"`
}

// PlanPermissions maps a plan to the features it unlocks, as served by the
// public permissions endpoint.
type PlanPermissions struct {
	Plan     Plan     `json:"plan"`
	Features []string `json:"features"`
}

// PublicConfig is the unauthenticated site-wide configuration, fetched once
// at startup and read-only afterwards.
type PublicConfig struct {
	SiteName      string   `json:"siteName"`
	EnabledModels []string `json:"enabledModels"`
}

// PricingTable carries per-model unit prices and the deep-search multiplier
// used by the billing estimator.
type PricingTable struct {
	ModelPrices    map[string]float64 `json:"modelPrices"`
	DeepMultiplier float64            `json:"deepMultiplier"`
}

// BillingSummary is the account's usage snapshot for the current billing day.
type BillingSummary struct {
	Plan           Plan   `json:"plan"`
	DailyLimit     int    `json:"dailyLimit"`
	UsedUnits      int    `json:"usedUnits"`
	RemainingUnits int    `json:"remainingUnits"`
	UsageDate      string `json:"usageDate"`
}

// BrandKeyword is a monitored brand or competitor term.
type BrandKeyword struct {
	ID           string   `json:"id"`
	Keyword      string   `json:"keyword"`
	Aliases      []string `json:"aliases,omitempty"`
	Category     string   `json:"category,omitempty"`
	IsOwn        bool     `json:"isOwn"`
	Color        string   `json:"color,omitempty"`
	Enabled      bool     `json:"enabled"`
	MentionCount int      `json:"mentionCount"`
}

// Sentiment classifies the tone of a brand mention.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// BrandMention is a single model-produced mention of a brand keyword,
// derived server-side from a completed task. Read-only on the client.
type BrandMention struct {
	ID             string    `json:"id"`
	BrandKeywordID string    `json:"brandKeywordId"`
	TaskID         string    `json:"taskId"`
	ModelKey       string    `json:"modelKey"`
	MentionCount   int       `json:"mentionCount"`
	Rank           *int      `json:"rank,omitempty"`
	Sentiment      Sentiment `json:"sentiment,omitempty"`
	Context        string    `json:"context,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// MentionStats are the server-computed aggregates returned alongside a
// keyword's mentions.
type MentionStats struct {
	TotalMentions int               `json:"totalMentions"`
	AverageRank   float64           `json:"averageRank"`
	Sentiment     map[Sentiment]int `json:"sentiment"`
}
