package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mentora/mentora/core/livesession"
	"github.com/mentora/mentora/core/user"
)

const contextSessionKey = "session"

func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if claims.IsAdmin && contextHasAnyRole(ctx, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func mentorOrAdminMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if claims.IsAdmin || claims.IsMentor {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// sessionMiddleware loads the `:id` session into the context.
// Only the session's mentor, admins and enrolled students may go further.
func sessionMiddleware(svc *livesession.Service, usrSvc *user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, usrSvc)
			if err != nil {
				return err
			}

			sess, err := svc.Get(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == livesession.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "getting session")
			}

			ok, err := svc.CanAccess(ctx.Request().Context(), sess, usr)
			if err != nil {
				return errors.Wrap(err, "checking session access")
			}
			if !ok {
				return errHttpForbidden
			}
			ctx.Set(contextSessionKey, sess)
			return next(ctx)
		}
	}
}

// manageSessionMiddleware must run after sessionMiddleware.
func manageSessionMiddleware(svc *livesession.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			sess, usr, err := contextSession(ctx)
			if err != nil {
				return err
			}
			if !svc.CanManage(sess, usr) {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}

var errSessionNotInCtx = errors.New("session not found in echo.Context")

func contextSession(ctx echo.Context) (livesession.Session, user.User, error) {
	sess, ok := ctx.Get(contextSessionKey).(livesession.Session)
	if !ok {
		return livesession.Session{}, user.User{}, errSessionNotInCtx
	}
	usr, ok := ctx.Get(contextUserKey).(user.User)
	if !ok {
		return livesession.Session{}, user.User{}, errUnauthorized
	}
	return sess, usr, nil
}
