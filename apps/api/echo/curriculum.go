package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/cohortly/lms/core/curriculum"
)

type curriculumApi struct {
	svc      *curriculum.Service
	validate *validator.Validate
}

func registerCurriculumAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *curriculum.Service, validate *validator.Validate) {
	api := curriculumApi{svc: svc, validate: validate}
	admin := requireAdmin()

	// public reference data, needed by the sign-up form
	g.GET("/tracks", api.queryTracks)
	g.GET("/cohorts", api.queryCohorts)

	ag := g.Group("", jwt)
	ag.POST("/tracks", api.createTrack, admin)
	ag.PUT("/tracks/:id", api.updateTrack, admin)
	ag.DELETE("/tracks/:id", api.deleteTrack, admin)
	ag.GET("/tracks/:id/weeks", api.queryWeeks)

	ag.POST("/cohorts", api.createCohort, admin)
	ag.PUT("/cohorts/:id", api.updateCohort, admin)
	ag.DELETE("/cohorts/:id", api.deleteCohort, admin)

	ag.POST("/weeks", api.createWeek, admin)
	ag.PUT("/weeks/:id", api.updateWeek, admin)
	ag.DELETE("/weeks/:id", api.deleteWeek, admin)
	ag.GET("/weeks/:id/lessons", api.queryLessons)

	ag.POST("/lessons", api.createLesson, admin)
	ag.PUT("/lessons/:id", api.updateLesson, admin)
	ag.DELETE("/lessons/:id", api.deleteLesson, admin)

	ag.GET("/assignments", api.queryAssignments)
	ag.POST("/assignments", api.createAssignment, admin)
	ag.PUT("/assignments/:id", api.updateAssignment, admin)
	ag.DELETE("/assignments/:id", api.deleteAssignment, admin)
}

// Tracks

func (api *curriculumApi) queryTracks(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.svc.QueryTracks(ctx.Request().Context()))
}

func (api *curriculumApi) createTrack(ctx echo.Context) error {
	var data curriculum.TrackInput
	if err := bindBody(ctx, &data, "TrackInput"); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	t, err := api.svc.CreateTrack(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating track")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *curriculumApi) updateTrack(ctx echo.Context) error {
	var data curriculum.TrackInput
	if err := bindBody(ctx, &data, "TrackInput"); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	t, err := api.svc.UpdateTrack(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating track")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *curriculumApi) deleteTrack(ctx echo.Context) error {
	if err := api.svc.DeleteTrack(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting track")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Cohorts

func (api *curriculumApi) queryCohorts(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.svc.QueryCohorts(ctx.Request().Context()))
}

func (api *curriculumApi) createCohort(ctx echo.Context) error {
	var data curriculum.CohortInput
	if err := bindBody(ctx, &data, "CohortInput"); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	c, err := api.svc.CreateCohort(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating cohort")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *curriculumApi) updateCohort(ctx echo.Context) error {
	var data curriculum.CohortInput
	if err := bindBody(ctx, &data, "CohortInput"); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	c, err := api.svc.UpdateCohort(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating cohort")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *curriculumApi) deleteCohort(ctx echo.Context) error {
	if err := api.svc.DeleteCohort(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting cohort")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Weeks

func (api *curriculumApi) queryWeeks(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.svc.QueryWeeks(ctx.Request().Context(), ctx.Param("id")))
}

func (api *curriculumApi) createWeek(ctx echo.Context) error {
	var data curriculum.WeekInput
	if err := bindBody(ctx, &data, "WeekInput"); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	w, err := api.svc.CreateWeek(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating week")
	}
	return ctx.JSON(http.StatusCreated, w)
}

func (api *curriculumApi) updateWeek(ctx echo.Context) error {
	var data curriculum.WeekInput
	if err := bindBody(ctx, &data, "WeekInput"); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	w, err := api.svc.UpdateWeek(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating week")
	}
	return ctx.JSON(http.StatusOK, w)
}

func (api *curriculumApi) deleteWeek(ctx echo.Context) error {
	if err := api.svc.DeleteWeek(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting week")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Lessons

func (api *curriculumApi) queryLessons(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.svc.QueryLessons(ctx.Request().Context(), ctx.Param("id")))
}

func (api *curriculumApi) createLesson(ctx echo.Context) error {
	var data curriculum.LessonInput
	if err := bindBody(ctx, &data, "LessonInput"); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	l, err := api.svc.CreateLesson(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating lesson")
	}
	return ctx.JSON(http.StatusCreated, l)
}

func (api *curriculumApi) updateLesson(ctx echo.Context) error {
	var data curriculum.LessonInput
	if err := bindBody(ctx, &data, "LessonInput"); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	l, err := api.svc.UpdateLesson(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating lesson")
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *curriculumApi) deleteLesson(ctx echo.Context) error {
	if err := api.svc.DeleteLesson(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting lesson")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Assignments

func (api *curriculumApi) queryAssignments(ctx echo.Context) error {
	var filter curriculum.AssignmentFilter
	if err := bindFilter(ctx, &filter); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.svc.QueryAssignments(ctx.Request().Context(), filter))
}

func (api *curriculumApi) createAssignment(ctx echo.Context) error {
	var data curriculum.AssignmentInput
	if err := bindBody(ctx, &data, "AssignmentInput"); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	a, err := api.svc.CreateAssignment(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *curriculumApi) updateAssignment(ctx echo.Context) error {
	var data curriculum.AssignmentInput
	if err := bindBody(ctx, &data, "AssignmentInput"); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	a, err := api.svc.UpdateAssignment(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating assignment")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *curriculumApi) deleteAssignment(ctx echo.Context) error {
	if err := api.svc.DeleteAssignment(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return ctx.NoContent(http.StatusNoContent)
}
