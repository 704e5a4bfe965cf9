package model

import "time"

// ProcessingStatus 课程采集会话状态
type ProcessingStatus string

const (
	StatusInitializing       ProcessingStatus = "initializing"
	StatusAwaitingLogin      ProcessingStatus = "awaiting_login"
	StatusDiscoveringModules ProcessingStatus = "discovering_modules"
	StatusProcessingModules  ProcessingStatus = "processing_modules"
	StatusAnalyzing          ProcessingStatus = "analyzing"
	StatusCompleted          ProcessingStatus = "completed"
	StatusStopped            ProcessingStatus = "stopped"
	StatusError              ProcessingStatus = "error"
)

// Terminal 终态后会话不再被其所属协程修改
func (s ProcessingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusStopped || s == StatusError
}

// MediaRef 模块页面中发现的媒体引用，只记录引用不下载内容
type MediaRef struct {
	Kind  string `json:"kind"` // video | audio | file
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// CourseModule 课程中的一个学习单元，采集完成后不再修改
type CourseModule struct {
	Title         string     `json:"title"`
	URL           string     `json:"url"`
	Order         int        `json:"order"`
	Text          string     `json:"text,omitempty"`
	Videos        []MediaRef `json:"videos,omitempty"`
	Audios        []MediaRef `json:"audios,omitempty"`
	Files         []MediaRef `json:"files,omitempty"`
	ScreenshotKey string     `json:"screenshotKey,omitempty"`
	Extracted     bool       `json:"extracted"`
	ExtractError  string     `json:"extractError,omitempty"`
}

// CourseSummary 整个课程处理完成后的汇总
type CourseSummary struct {
	CourseTitle      string   `json:"courseTitle"`
	ModulesCompleted int      `json:"modulesCompleted"`
	ModulesFailed    int      `json:"modulesFailed"`
	TotalVideos      int      `json:"totalVideos"`
	TotalAudios      int      `json:"totalAudios"`
	TotalFiles       int      `json:"totalFiles"`
	Topics           []string `json:"topics,omitempty"`
	KnowledgeBaseID  string   `json:"knowledgeBaseId,omitempty"`
}

// ProcessingSession 一次课程采集会话。只有其所属的处理协程会修改它，
// 其他协程通过会话存储读取快照
type ProcessingSession struct {
	ID            string           `json:"id"`
	UserID        uint             `json:"userId"`
	CourseURL     string           `json:"courseUrl"`
	PageTitle     string           `json:"pageTitle"`
	Status        ProcessingStatus `json:"status"`
	Modules       []CourseModule   `json:"modules,omitempty"`
	CurrentModule int              `json:"currentModule"`
	TotalModules  int              `json:"totalModules"`
	Progress      int              `json:"progress"`
	Summary       *CourseSummary   `json:"summary,omitempty"`
	ErrorDetail   string           `json:"errorDetail,omitempty"`
	StartedAt     time.Time        `json:"startedAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}
