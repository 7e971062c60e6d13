package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/sucaihub/backend/internal/service"
	"github.com/sucaihub/backend/pkg/errno"
)

// GetVipInfo 获取当前用户的 VIP 详情
func GetVipInfo(c *gin.Context) {
	info, err := service.NewVipService().GetUserVipInfo(currentUserID(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, info)
}

// GetVipPackages 获取上架的 VIP 套餐
func GetVipPackages(c *gin.Context) {
	packages, err := service.NewVipService().GetVipPackages()
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, packages)
}

// GetVipPrivileges 获取启用的 VIP 特权列表
func GetVipPrivileges(c *gin.Context) {
	privileges, err := service.NewVipService().GetVipPrivileges()
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, privileges)
}

// activateVipRequest 开通/续费请求
type activateVipRequest struct {
	PackageID string `json:"package_id" binding:"required"`
}

// ActivateVip 开通或续费 VIP
func ActivateVip(c *gin.Context) {
	var req activateVipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, errno.ErrBind)
		return
	}

	result, err := service.NewVipService().ActivateVip(currentUserID(c), req.PackageID)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, result)
}

// AdminCreateVipPackage 创建 VIP 套餐
func AdminCreateVipPackage(c *gin.Context) {
	var data service.VipPackageData
	if err := c.ShouldBindJSON(&data); err != nil {
		Fail(c, errno.ErrBind)
		return
	}

	pkg, err := service.NewVipService().CreateVipPackage(&data)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, pkg)
}

// AdminActivateVip 管理后台给指定用户开通 VIP
func AdminActivateVip(c *gin.Context) {
	var req activateVipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, errno.ErrBind)
		return
	}

	result, err := service.NewVipService().ActivateVip(c.Param("user_id"), req.PackageID)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, result)
}
