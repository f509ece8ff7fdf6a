// Package authz 提供基于角色的能力校验
package authz

import (
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/errors"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/jwt"
)

// Capability 能力码
type Capability string

// 能力定义
const (
	CapOrderCreate           Capability = "order:create"
	CapOrderCreateForUser    Capability = "order:create_for_user"
	CapOrderViewAny          Capability = "order:view_any"
	CapBookingUpdateStatus   Capability = "booking:update_status"
	CapBookingCancelOwn      Capability = "booking:cancel_own"
	CapBookingManageBlocking Capability = "booking:manage_blocking"
	CapPaymentViewAny        Capability = "payment:view_any"
	CapPaymentReconcile      Capability = "payment:reconcile"
	CapPaymentRetryInvoice   Capability = "payment:retry_invoice"
)

// Caller 调用方身份，来自外部签发的令牌
type Caller struct {
	UserID int64
	Role   string
}

// IsStaff 是否为员工或管理员
func (c Caller) IsStaff() bool {
	return c.Role == jwt.RoleStaff || c.Role == jwt.RoleAdmin
}

// Authorizer 能力表
type Authorizer struct {
	grants map[string]map[Capability]struct{}
}

// defaultGrants 默认角色能力表
var defaultGrants = map[string][]Capability{
	jwt.RoleUser: {
		CapOrderCreate,
		CapBookingCancelOwn,
		CapPaymentRetryInvoice,
	},
	jwt.RoleStaff: {
		CapOrderCreate,
		CapOrderCreateForUser,
		CapOrderViewAny,
		CapBookingUpdateStatus,
		CapBookingCancelOwn,
		CapBookingManageBlocking,
		CapPaymentViewAny,
		CapPaymentRetryInvoice,
	},
	jwt.RoleAdmin: {
		CapOrderCreate,
		CapOrderCreateForUser,
		CapOrderViewAny,
		CapBookingUpdateStatus,
		CapBookingCancelOwn,
		CapBookingManageBlocking,
		CapPaymentViewAny,
		CapPaymentReconcile,
		CapPaymentRetryInvoice,
	},
}

// NewAuthorizer 使用默认能力表创建
func NewAuthorizer() *Authorizer {
	return NewAuthorizerWithGrants(defaultGrants)
}

// NewAuthorizerWithGrants 使用自定义能力表创建
func NewAuthorizerWithGrants(grants map[string][]Capability) *Authorizer {
	a := &Authorizer{grants: make(map[string]map[Capability]struct{}, len(grants))}
	for role, caps := range grants {
		set := make(map[Capability]struct{}, len(caps))
		for _, c := range caps {
			set[c] = struct{}{}
		}
		a.grants[role] = set
	}
	return a
}

// Can 角色是否拥有能力
func (a *Authorizer) Can(role string, capability Capability) bool {
	caps, ok := a.grants[role]
	if !ok {
		return false
	}
	_, ok = caps[capability]
	return ok
}

// Authorize 校验调用方能力
func (a *Authorizer) Authorize(caller Caller, capability Capability) error {
	if caller.Role == "" {
		return errors.ErrUnauthorized
	}
	if !a.Can(caller.Role, capability) {
		return errors.ErrPermissionDenied.WithMessage("无权执行操作: " + string(capability))
	}
	return nil
}

// AuthorizeOwner 校验能力，并要求非员工只能操作自己的资源
func (a *Authorizer) AuthorizeOwner(caller Caller, capability Capability, ownerID int64) error {
	if err := a.Authorize(caller, capability); err != nil {
		return err
	}
	if !caller.IsStaff() && caller.UserID != ownerID {
		return errors.ErrPermissionDenied.WithMessage("只能操作自己的资源")
	}
	return nil
}

// HasPermission 实现中间件的权限检查接口
func (a *Authorizer) HasPermission(role, permission string) bool {
	return a.Can(role, Capability(permission))
}

// HasAnyPermission 拥有任一权限
func (a *Authorizer) HasAnyPermission(role string, permissions []string) bool {
	for _, p := range permissions {
		if a.Can(role, Capability(p)) {
			return true
		}
	}
	return false
}

// HasAllPermissions 拥有全部权限
func (a *Authorizer) HasAllPermissions(role string, permissions []string) bool {
	for _, p := range permissions {
		if !a.Can(role, Capability(p)) {
			return false
		}
	}
	return true
}
