package httpserver

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/metrics", s.metricsEndpoint)

	api := s.echo.Group("/api/v1")
	api.Use(s.middleware.RateLimit.Handler())

	verify := api.Group("/verification")
	verify.POST("/request", s.requestVerificationCode)
	verify.POST("/confirm", s.confirmVerificationCode)

	api.POST("/contributions", s.submitContribution)

	if s.middleware.Admin != nil && s.auditSvc != nil {
		admin := api.Group("/admin", s.middleware.Admin.RequireAPIKey())
		admin.GET("/contributions", s.listContributionAudits)
	}
}
