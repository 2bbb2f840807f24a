package models

import "strings"

// IssueTag is a playback anomaly detected by the QoE analyzer
type IssueTag string

const (
	IssueDRMError    IssueTag = "DRM_Error"
	IssueBuffering   IssueTag = "Buffering"
	IssueBlackScreen IssueTag = "Black_Screen"
)

// Verdict is the transient result of one QoE inspection
type Verdict struct {
	Issues     []IssueTag
	BlackRatio float64
	Screenshot string
}

// Has reports whether tag was detected
func (v Verdict) Has(tag IssueTag) bool {
	for _, issue := range v.Issues {
		if issue == tag {
			return true
		}
	}
	return false
}

// Healthy reports whether no issue was detected
func (v Verdict) Healthy() bool {
	return len(v.Issues) == 0
}

// String joins the issue tags the way they appear in report events
func (v Verdict) String() string {
	names := make([]string, len(v.Issues))
	for i, issue := range v.Issues {
		names[i] = string(issue)
	}
	return strings.Join(names, ", ")
}
