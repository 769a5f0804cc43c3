package model

// IntegrityEventType 客户端上报的监考信号。
type IntegrityEventType string

const (
	EventBlur             IntegrityEventType = "blur"
	EventFocus            IntegrityEventType = "focus"
	EventHidden           IntegrityEventType = "hidden"
	EventVisible          IntegrityEventType = "visible"
	EventFullscreenExit   IntegrityEventType = "fullscreen_exit"
	EventFullscreenFailed IntegrityEventType = "fullscreen_failed"
	EventKeyCombo         IntegrityEventType = "key_combo"
	EventWatchdogStale    IntegrityEventType = "watchdog_stale" // 心跳超时时由服务端补记
)

// IntegrityEvent 监考事件审计记录。ViolationNo 为该事件计入的违规序号，0 表示未计数。
type IntegrityEvent struct {
	BaseModel
	SessionID   string             `gorm:"index;type:varchar(36)" json:"sessionId"`
	EventType   IntegrityEventType `gorm:"size:30" json:"eventType"`
	Detail      string             `gorm:"size:255" json:"detail,omitempty"` // key_combo 的按键等
	ViolationNo int                `gorm:"default:0" json:"violationNo"`
}

func (IntegrityEvent) TableName() string {
	return "integrity_events"
}
