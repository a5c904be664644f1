package main

import (
	"log"
	"net/http"

	"storefront/config"
	"storefront/consumers"
	"storefront/controllers"
	"storefront/database"
	"storefront/middlewares"
	"storefront/rabbitmq"
	"storefront/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.LoadConfig()

	if err := database.InitDB(cfg); err != nil {
		log.Fatalf("Database initialization failed: %v", err)
	}
	defer database.CloseDB()

	if err := database.RunMigrations(cfg); err != nil {
		log.Fatalf("Migrations failed: %v", err)
	}

	if err := database.SeedAdmin(cfg); err != nil {
		log.Fatalf("Admin seeding failed: %v", err)
	}

	orderService := services.NewOrderService(database.NewStore(database.DB))

	rmq, err := rabbitmq.NewRabbitMQ(cfg)
	if err != nil {
		log.Fatalf("RabbitMQ initialization failed: %v", err)
	}
	defer rmq.Close()

	if err := rmq.SetupQueues(); err != nil {
		log.Fatalf("Failed to setup RabbitMQ queues: %v", err)
	}

	go consumers.StartOrderConsumer(rmq.Channel, cfg, orderService)

	controllers.SetConfig(cfg)
	controllers.SetRabbitMQ(rmq)
	controllers.SetOrderService(orderService)

	r := gin.Default()

	r.Use(middlewares.PrometheusMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Open endpoints: registration, token issuance, catalog reads.
	r.POST("/api/auth/register", controllers.Register)
	r.POST("/api/auth/login", controllers.Login)
	r.POST("/api/auth/refresh", controllers.RefreshToken)
	r.GET("/api/products", controllers.ListProducts)
	r.GET("/api/products/:id", controllers.GetProduct)

	// Authenticated endpoints. Role and ownership rules are applied per
	// handler through the permissions package.
	authGroup := r.Group("/api")
	authGroup.Use(middlewares.AuthMiddleware(cfg))
	{
		authGroup.POST("/orders", controllers.CreateOrder)
		authGroup.GET("/orders", controllers.GetUserOrders)
		authGroup.GET("/orders/:id", controllers.GetOrderDetails)
		authGroup.PUT("/orders/:id/status", controllers.UpdateOrderStatus)
		authGroup.POST("/products", controllers.CreateProduct)
		authGroup.PUT("/products/:id", controllers.UpdateProduct)
		authGroup.DELETE("/products/:id", controllers.DeleteProduct)
		authGroup.PUT("/users/:id/role", controllers.UpdateUserRole)
	}

	r.POST("/dead-letter", controllers.HandleDeadLetter)

	addr := ":" + cfg.ServerPort
	log.Printf("Storefront API starting on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
