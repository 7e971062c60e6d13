package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sucaihub/backend/internal/service"
	"github.com/sucaihub/backend/internal/tasks"
	"github.com/sucaihub/backend/pkg/errno"
)

// AdminReconcile 对指定时间窗做一次对账，默认最近 24 小时
func AdminReconcile(c *gin.Context) {
	now := time.Now()
	start := now.Add(-24 * time.Hour)
	end := now

	if s := c.Query("start_date"); s != "" {
		t, err := time.ParseInLocation("2006-01-02", s, time.Local)
		if err != nil {
			Fail(c, errno.ErrBind.WithMessage("start_date 格式应为 YYYY-MM-DD"))
			return
		}
		start = t
	}
	if s := c.Query("end_date"); s != "" {
		t, err := time.ParseInLocation("2006-01-02", s, time.Local)
		if err != nil {
			Fail(c, errno.ErrBind.WithMessage("end_date 格式应为 YYYY-MM-DD"))
			return
		}
		end = t.AddDate(0, 0, 1)
	}

	result, err := service.NewReconciliationService().Reconcile(start, end)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, result)
}

// AdminGetAnomalousOrders 查询待处理的异常订单
func AdminGetAnomalousOrders(c *gin.Context) {
	orders, err := service.NewReconciliationService().FindAnomalousOrders()
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, orders)
}

// AdminAutoFix 对已支付但未发积分的订单手动补单
func AdminAutoFix(c *gin.Context) {
	if err := service.NewReconciliationService().AutoFix(c.Param("order_id")); err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"message": "补单成功"})
}

// AdminGetDuplicatePayments 查询重复支付的订单
func AdminGetDuplicatePayments(c *gin.Context) {
	orders, err := service.NewReconciliationService().GetDuplicatePaymentOrders()
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, orders)
}

// AdminGetReconciliationStats 对账统计，默认最近 7 天
func AdminGetReconciliationStats(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))

	stats, err := service.NewReconciliationService().GetReconciliationStats(days)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, stats)
}

// AdminCancelExpiredOrders 手动触发一次超时订单清理
func AdminCancelExpiredOrders(c *gin.Context) {
	cancelled, err := service.NewReconciliationService().CancelExpiredOrders()
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"cancelled": cancelled})
}

// AdminGetTaskStatus 查看后台任务运行状态
func AdminGetTaskStatus(c *gin.Context) {
	Success(c, tasks.GetManager().GetStatus())
}

// AdminRunTask 手动补跑一次后台任务
func AdminRunTask(c *gin.Context) {
	name := c.Param("name")
	if !tasks.GetManager().RunNow(name) {
		Fail(c, errno.ErrBind.WithMessage("任务不存在: "+name))
		return
	}
	Success(c, gin.H{"message": "任务已触发", "task": name})
}
