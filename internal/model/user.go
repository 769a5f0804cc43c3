package model

// 用户与角色管理在主站完成，本服务只消费门户签发的 JWT 中的角色声明。

type UserRole string

const (
	Student UserRole = "student"
	Teacher UserRole = "teacher"
	Admin   UserRole = "admin"
)
