package model

// UserRole 用户角色，用户数据由外部认证服务管理，后端只消费令牌中的声明
type UserRole string

const (
	Student UserRole = "student"
	Teacher UserRole = "teacher"
	Admin   UserRole = "admin"
)
