package handler

import "github.com/gin-gonic/gin"

// Handlers groups every HTTP handler registered under the API prefix.
type Handlers struct {
	Teachers     *TeacherHandler
	Subjects     *SubjectHandler
	Students     *StudentHandler
	Availability *AvailabilityHandler
	Timetable    *TimetableHandler
	Generation   *GenerationHandler
}

// Register mounts the API routes on the given group.
func Register(api gin.IRouter, h Handlers) {
	teachers := api.Group("/teachers")
	teachers.GET("", h.Teachers.List)
	teachers.POST("", h.Teachers.Create)
	teachers.GET("/:id", h.Teachers.Get)
	teachers.PUT("/:id", h.Teachers.Update)
	teachers.DELETE("/:id", h.Teachers.Delete)

	subjects := api.Group("/subjects")
	subjects.GET("", h.Subjects.List)
	subjects.POST("", h.Subjects.Create)
	subjects.GET("/:id", h.Subjects.Get)
	subjects.PUT("/:id", h.Subjects.Update)
	subjects.DELETE("/:id", h.Subjects.Delete)

	students := api.Group("/students")
	students.GET("", h.Students.List)
	students.POST("", h.Students.Create)
	students.GET("/:id", h.Students.Get)
	students.PUT("/:id", h.Students.Update)
	students.DELETE("/:id", h.Students.Delete)
	students.DELETE("/:id/timetable", h.Students.PurgeTimetable)

	availability := api.Group("/availability")
	availability.GET("", h.Availability.List)
	availability.POST("", h.Availability.Create)
	availability.GET("/:id", h.Availability.Get)
	availability.PUT("/:id", h.Availability.Update)
	availability.DELETE("/:id", h.Availability.Delete)

	timetable := api.Group("/timetable")
	timetable.GET("", h.Timetable.List)
	timetable.POST("", h.Timetable.Create)
	timetable.GET("/export", h.Timetable.Export)
	timetable.POST("/generate", h.Generation.Generate)
	timetable.POST("/generate/bulk", h.Generation.GenerateBulk)
	timetable.GET("/generate/jobs/:id", h.Generation.JobStatus)
	timetable.GET("/:id", h.Timetable.Get)
	timetable.PUT("/:id", h.Timetable.Update)
	timetable.DELETE("/:id", h.Timetable.Delete)
}
