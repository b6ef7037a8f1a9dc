package dto

// ── 用户模块 DTO ──

// CreateUserRequest 创建用户请求
type CreateUserRequest struct {
	Username string `json:"username" binding:"required,min=2,max=50"`
	Password string `json:"password" binding:"required,min=6,max=72"`
	Email    string `json:"email"    binding:"omitempty,email"`
	Phone    string `json:"phone"    binding:"omitempty,max=20"`
	RealName string `json:"real_name" binding:"omitempty,max=100"`
}

// UpdateUserRequest 更新用户信息请求
type UpdateUserRequest struct {
	Email *string `json:"email" binding:"omitempty,email"`
	Phone *string `json:"phone" binding:"omitempty,max=20"`
}

// UpdateProfileRequest 更新个人资料请求
type UpdateProfileRequest struct {
	RealName *string `json:"real_name" binding:"omitempty,max=100"`
	Avatar   *string `json:"avatar"    binding:"omitempty,max=255"`
	Gender   *int16  `json:"gender"    binding:"omitempty,oneof=0 1 2"`
	Birthday *string `json:"birthday"  binding:"omitempty,datetime=2006-01-02"`
}

// UserListRequest 用户列表查询参数
type UserListRequest struct {
	PaginationRequest
}

// AssignRolesRequest 分配角色请求（全量替换）
type AssignRolesRequest struct {
	RoleIDs []string `json:"role_ids" binding:"required,dive,uuid"`
}

// AssignDepartmentsRequest 分配部门请求（全量替换）
// primary_department_id 可省略，省略时不标记主部门
type AssignDepartmentsRequest struct {
	DepartmentIDs       []string `json:"department_ids"        binding:"required,min=1,dive,uuid"`
	PrimaryDepartmentID string   `json:"primary_department_id" binding:"omitempty,uuid"`
}

// SetPrimaryDepartmentRequest 设置主部门请求
type SetPrimaryDepartmentRequest struct {
	DepartmentID string `json:"department_id" binding:"required,uuid"`
}

// UserResponse 用户信息响应（脱敏）
type UserResponse struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Status      string `json:"status"`
	RealName    string `json:"real_name,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
	Gender      int16  `json:"gender"`
	LastLoginAt string `json:"last_login_at,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// UserDetailResponse 用户详细信息（含角色与部门）
type UserDetailResponse struct {
	UserResponse
	Roles             []RoleResponse         `json:"roles"`
	Departments       []DepartmentMembership `json:"departments"`
	PrimaryDepartment *DepartmentResponse    `json:"primary_department,omitempty"`
}

// DepartmentMembership 用户所属部门（含主部门标记）
type DepartmentMembership struct {
	DepartmentResponse
	IsPrimary bool `json:"is_primary"`
}

// ImportUserResponse 批量导入用户响应
type ImportUserResponse struct {
	Total   int               `json:"total"`
	Success int               `json:"success"`
	Failed  int               `json:"failed"`
	Errors  []ImportUserError `json:"errors,omitempty"`
}

// ImportUserError 导入错误详情
type ImportUserError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}
