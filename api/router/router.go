package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/locey/TaskAVS/api/middleware"
	"github.com/locey/TaskAVS/api/v1"
	"github.com/locey/TaskAVS/service/svc"
)

func NewRouter(svcCtx *svc.ServerCtx) *gin.Engine {
	gin.ForceConsoleColor()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Trace())
	r.Use(cors.New(cors.Config{
		AllowOriginFunc:  func(string) bool { return true },
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.TraceHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.TraceHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	loadV1(r, svcCtx)

	r.GET("/healthz", v1.HealthHandler(svcCtx))
	if svcCtx.C.Metrics.Enabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
	return r
}

func loadV1(r *gin.Engine, svcCtx *svc.ServerCtx) {
	apiV1 := r.Group("/api/v1")
	authed := middleware.Auth(svcCtx.Auth)

	user := apiV1.Group("/auth")
	{
		user.GET("/nonce", v1.GetNonceHandler(svcCtx))
		user.POST("", v1.UserLoginHandler(svcCtx))
	}

	tasks := apiV1.Group("/tasks")
	{
		tasks.GET("", v1.GetTasksHandler(svcCtx))
		tasks.POST("", authed, middleware.Admin(svcCtx.C.Auth.AdminAddresses), v1.CreateTaskHandler(svcCtx))
		tasks.GET("/user/tasks", authed, v1.GetUserTasksHandler(svcCtx))
		tasks.POST("/:taskId/apply", authed, v1.ApplyTaskHandler(svcCtx))
	}

	admin := apiV1.Group("/admin", authed, middleware.Admin(svcCtx.C.Auth.AdminAddresses))
	{
		admin.POST("/ban", v1.BanUserHandler(svcCtx))
		admin.POST("/unban", v1.UnbanUserHandler(svcCtx))
	}
}
