package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"nemi/internal/auth"
	"nemi/internal/meta"
)

type credentials struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Gender    string `json:"gender"`
	Email     string `json:"email"`
}

func (cr *credentials) validate() []FieldError {
	var out []FieldError
	if cr.Username == "" {
		out = append(out, ferr(ErrRequired, "username", "Username is required"))
	}
	if cr.Password == "" {
		out = append(out, ferr(ErrRequired, "password", "Password is required"))
	}
	return out
}

// POST /auth/register
func RegisterHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var cr credentials
		if err := c.ShouldBindJSON(&cr); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"errors": []FieldError{ferr(ErrTypeMismatch, "", "Invalid JSON")},
			})
			return
		}
		if fieldErrs := cr.validate(); len(fieldErrs) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"errors": fieldErrs})
			return
		}

		ctx := c.Request.Context()
		existing, err := d.Gateway.Select(ctx, meta.TableUser, map[string]any{"username": cr.Username})
		if err != nil {
			abortWithError(c, err)
			return
		}
		if len(existing) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"errors": []FieldError{ferr(ErrExists, "username", "Username is taken")},
			})
			return
		}

		hash, err := auth.HashPassword(cr.Password)
		if err != nil {
			abortWithError(c, err)
			return
		}
		nid, err := d.Gateway.Insert(ctx, meta.TableUser, map[string]any{
			"username":  cr.Username,
			"password":  hash,
			"firstname": cr.Firstname,
			"lastname":  cr.Lastname,
			"gender":    cr.Gender,
			"email":     cr.Email,
			"active":    true,
		})
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"user": gin.H{"nid": nid, "username": cr.Username}})
	}
}

// POST /auth/login
func LoginHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var cr credentials
		if err := c.ShouldBindJSON(&cr); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"errors": []FieldError{ferr(ErrTypeMismatch, "", "Invalid JSON")},
			})
			return
		}

		ctx := c.Request.Context()
		rows, err := d.Gateway.Select(ctx, meta.TableUser, map[string]any{"username": cr.Username})
		if err != nil {
			abortWithError(c, err)
			return
		}
		// один и тот же ответ на неизвестного пользователя и неверный пароль
		if len(rows) == 0 || !auth.ComparePasswords(cr.Password, meta.AsString(rows[0]["password"])) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		user := rows[0]
		token, err := auth.CreateToken(d.JWTSecret, meta.AsString(user["nid"]), cr.Username)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"token": token,
			"user":  gin.H{"nid": meta.AsString(user["nid"]), "username": cr.Username},
		})
	}
}
