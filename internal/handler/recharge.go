package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sucaihub/backend/internal/logger"
	"github.com/sucaihub/backend/internal/service"
	"github.com/sucaihub/backend/pkg/errno"
)

// GetRechargePackages 获取上架的充值套餐
func GetRechargePackages(c *gin.Context) {
	packages, err := service.NewRechargePackageService().GetAvailablePackages()
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, packages)
}

// CreateRechargeOrder 创建充值订单
func CreateRechargeOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, errno.ErrBind)
		return
	}
	req.UserID = currentUserID(c)
	req.IPAddress = c.ClientIP()
	req.DeviceInfo = c.GetHeader("User-Agent")

	order, err := service.NewRechargeOrderService().CreateOrder(&req)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, order)
}

// GetMyOrders 分页查询当前用户的充值订单
func GetMyOrders(c *gin.Context) {
	var query service.OrderQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		Fail(c, errno.ErrBind)
		return
	}

	list, err := service.NewRechargeOrderService().GetUserOrders(currentUserID(c), &query)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, list)
}

// GetOrder 查询单笔订单，普通用户只能查自己的
func GetOrder(c *gin.Context) {
	order, err := service.NewRechargeOrderService().GetOrderByID(c.Param("order_id"))
	if err != nil {
		Fail(c, err)
		return
	}

	role, _ := c.Get("role")
	if r, ok := role.(int); (!ok || r < 10) && order.UserID != currentUserID(c) {
		Fail(c, errno.ErrOrderNotFound)
		return
	}
	Success(c, order)
}

// CancelMyOrder 用户取消自己的待支付订单
func CancelMyOrder(c *gin.Context) {
	svc := service.NewRechargeOrderService()

	order, err := svc.GetOrderByID(c.Param("order_id"))
	if err != nil {
		Fail(c, err)
		return
	}
	if order.UserID != currentUserID(c) {
		Fail(c, errno.ErrOrderNotFound)
		return
	}

	cancelled, err := svc.CancelOrder(order.OrderID, "用户取消")
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, cancelled)
}

// callbackRequest 支付回调入参（网关字段已在接入前抹平）
type callbackRequest struct {
	OrderNo       string `json:"order_no" binding:"required"`
	TransactionID string `json:"transaction_id" binding:"required"`
	PaidAt        string `json:"paid_at"`
	RawData       string `json:"raw_data"`
}

// PaymentCallback 支付回调入口，:channel 为 wechat / alipay
func PaymentCallback(c *gin.Context) {
	var req callbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, errno.ErrBind)
		return
	}

	var paidAt time.Time
	if req.PaidAt != "" {
		if t, err := time.ParseInLocation("2006-01-02 15:04:05", req.PaidAt, time.Local); err == nil {
			paidAt = t
		}
	}

	outcome, err := service.NewRechargeOrderService().ProcessPaymentCallback(&service.CallbackInput{
		OrderNo:       req.OrderNo,
		Channel:       c.Param("channel"),
		TransactionID: req.TransactionID,
		RawData:       req.RawData,
		PaidAt:        paidAt,
	})
	if err != nil {
		logger.Error("支付回调处理异常",
			zap.String("order_no", req.OrderNo),
			zap.Error(err))
		Fail(c, err)
		return
	}
	Success(c, outcome)
}

// ---- 管理后台 ----

// AdminGetOrders 管理后台分页查询订单
func AdminGetOrders(c *gin.Context) {
	var query service.OrderQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		Fail(c, errno.ErrBind)
		return
	}

	list, err := service.NewRechargeOrderService().GetOrders(&query)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, list)
}

// AdminGetPackages 管理后台查询全部套餐
func AdminGetPackages(c *gin.Context) {
	packages, err := service.NewRechargePackageService().GetAllPackages()
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, packages)
}

// AdminCreatePackage 创建充值套餐
func AdminCreatePackage(c *gin.Context) {
	var data service.PackageData
	if err := c.ShouldBindJSON(&data); err != nil {
		Fail(c, errno.ErrBind)
		return
	}

	pkg, err := service.NewRechargePackageService().CreatePackage(&data)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, pkg)
}

// AdminUpdatePackage 更新充值套餐
func AdminUpdatePackage(c *gin.Context) {
	var data service.PackageData
	if err := c.ShouldBindJSON(&data); err != nil {
		Fail(c, errno.ErrBind)
		return
	}

	pkg, err := service.NewRechargePackageService().UpdatePackage(c.Param("package_id"), &data)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, pkg)
}

// AdminSetPackageStatus 上架/下架套餐
func AdminSetPackageStatus(c *gin.Context) {
	status, err := strconv.Atoi(c.DefaultQuery("status", "1"))
	if err != nil {
		Fail(c, errno.ErrBind)
		return
	}

	pkg, err := service.NewRechargePackageService().SetPackageStatus(c.Param("package_id"), status)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, pkg)
}
