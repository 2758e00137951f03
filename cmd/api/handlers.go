package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"smartattend/internal/admin"
	"smartattend/internal/attendance"
	"smartattend/internal/auth"
	"smartattend/internal/calendar"
	"smartattend/internal/config"
	"smartattend/internal/dress"
	"smartattend/internal/face"
	"smartattend/internal/institute"
	"smartattend/internal/metrics"
	"smartattend/internal/report"
	"smartattend/internal/student"
)

// server bundles the handler dependencies.
type server struct {
	cfg        config.App
	institutes *institute.Repository
	students   *student.Repository
	records    *attendance.Repository
	holidays   *calendar.Repository
	dressRefs  *dress.Repository
	resolver   *calendar.Resolver
	enrollment *student.Service
	marking    *attendance.Service
	admins     *admin.Service
}

// Response envelope shared by every endpoint.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func success(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, envelope{Status: "success", Message: message, Data: data})
}

func warning(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, envelope{Status: "warning", Message: message, Data: data})
}

func fail(c *gin.Context, message string) {
	c.JSON(http.StatusOK, envelope{Status: "error", Message: message})
}

func failWith(c *gin.Context, code int, message string) {
	c.JSON(code, envelope{Status: "error", Message: message})
}

func (s *server) root(c *gin.Context) {
	success(c, "Smart Attendance System backend", nil)
}

// readUpload pulls a named file out of the multipart form.
func readUpload(c *gin.Context, field string) ([]byte, error) {
	file, _, err := c.Request.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("%s file required", field)
	}
	defer file.Close()
	return io.ReadAll(file)
}

func (s *server) registerStudent(c *gin.Context) {
	name := c.PostForm("name")
	rollNumber := c.PostForm("roll_number")
	department := c.PostForm("department")
	instituteName := c.PostForm("institute_name")

	photo, err := readUpload(c, "photo")
	if err != nil {
		failWith(c, http.StatusBadRequest, err.Error())
		return
	}

	st, err := s.enrollment.Enroll(c.Request.Context(), name, rollNumber, department, instituteName, photo)
	if err != nil {
		switch {
		case errors.Is(err, student.ErrDuplicate):
			fail(c, fmt.Sprintf("Student with roll number %s already exists!", rollNumber))
		default:
			var extractErr *face.ExtractionError
			var transientErr *face.TransientError
			if errors.As(err, &extractErr) {
				fail(c, "Registration failed: "+extractErr.Reason)
			} else if errors.As(err, &transientErr) {
				failWith(c, http.StatusServiceUnavailable, "Face service unavailable, please try again.")
			} else {
				log.Printf("api: registration failed: %v", err)
				fail(c, "Registration failed!")
			}
		}
		return
	}

	metrics.Enrollments.Inc()
	success(c, "Student registered successfully!", gin.H{
		"id":          st.ID,
		"name":        st.Name,
		"roll_number": st.RollNumber,
		"department":  st.Department,
		"institute":   instituteName,
	})
}

func (s *server) markAttendance(c *gin.Context) {
	instituteName := c.PostForm("institute_name")
	photo, err := readUpload(c, "photo")
	if err != nil {
		failWith(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.marking.Mark(c.Request.Context(), instituteName, photo)
	if err != nil {
		s.renderMarkError(c, instituteName, err)
		return
	}

	success(c, fmt.Sprintf("Attendance marked successfully for %s!", result.Student.Name), gin.H{
		"student":              result.Student.Name,
		"roll_number":          result.Student.RollNumber,
		"department":           result.Student.Department,
		"match_confidence":     fmt.Sprintf("%.2f%%", result.Confidence),
		"status":               result.Status,
		"dress_code_compliant": result.DressCompliant,
		"dress_code_details":   result.DressReport,
	})
}

func (s *server) renderMarkError(c *gin.Context, instituteName string, err error) {
	var blocked *attendance.PolicyBlockedError
	var duplicate *attendance.DuplicateError
	var extractErr *face.ExtractionError
	var transientErr *face.TransientError

	switch {
	case errors.Is(err, attendance.ErrInstituteNotFound):
		fail(c, fmt.Sprintf("Institute '%s' not found!", instituteName))
	case errors.As(err, &blocked):
		if blocked.IsCustom {
			fail(c, fmt.Sprintf("Today is a holiday (%s). Attendance marking is disabled.", blocked.Reason))
		} else {
			fail(c, fmt.Sprintf("Today is %s. Attendance marking is disabled on weekends.", blocked.Reason))
		}
	case errors.As(err, &extractErr):
		fail(c, "Attendance marking failed: "+extractErr.Reason)
	case errors.As(err, &transientErr):
		failWith(c, http.StatusServiceUnavailable, "Face service unavailable, please try again.")
	case errors.Is(err, attendance.ErrNotRecognized):
		fail(c, "Face not recognized! Please register first.")
	case errors.As(err, &duplicate):
		warning(c, fmt.Sprintf("Attendance already marked for %s today!", duplicate.StudentName), gin.H{
			"student":     duplicate.StudentName,
			"roll_number": duplicate.RollNumber,
			"department":  duplicate.Department,
			"time":        duplicate.Existing.Time,
			"status":      duplicate.Existing.Status,
		})
	default:
		log.Printf("api: attendance marking failed: %v", err)
		failWith(c, http.StatusInternalServerError, "Attendance marking failed!")
	}
}

func (s *server) checkHoliday(c *gin.Context) {
	instituteName := c.Param("institute")
	today := time.Now()

	inst, err := s.institutes.FindByName(c.Request.Context(), instituteName)
	if err != nil {
		if errors.Is(err, institute.ErrNotFound) {
			success(c, "", gin.H{
				"is_holiday": false,
				"reason":     "Institute not found, assuming working day",
				"date":       today.Format("2006-01-02"),
				"is_custom":  false,
			})
			return
		}
		failWith(c, http.StatusInternalServerError, "Holiday check failed!")
		return
	}

	decision, err := s.resolver.Check(c.Request.Context(), inst.ID, today)
	if err != nil {
		failWith(c, http.StatusInternalServerError, "Holiday check failed!")
		return
	}

	success(c, "", gin.H{
		"is_holiday": !decision.Allowed,
		"reason":     decision.Reason,
		"date":       today.Format("2006-01-02"),
		"is_custom":  decision.IsCustom,
	})
}

func (s *server) adminRegister(c *gin.Context) {
	name := c.PostForm("name")
	email := c.PostForm("email")
	password := c.PostForm("password")
	instituteName := c.PostForm("institute_name")
	if name == "" || email == "" || password == "" || instituteName == "" {
		failWith(c, http.StatusBadRequest, "name, email, password and institute_name are required")
		return
	}

	if err := s.admins.Register(c.Request.Context(), name, email, password, instituteName); err != nil {
		if errors.Is(err, admin.ErrEmailTaken) {
			fail(c, "Admin with this email already exists!")
			return
		}
		log.Printf("api: admin registration failed: %v", err)
		fail(c, "Registration failed!")
		return
	}
	success(c, "Admin registered successfully!", nil)
}

func (s *server) adminLogin(c *gin.Context) {
	email := c.PostForm("email")
	password := c.PostForm("password")

	a, inst, err := s.admins.Login(c.Request.Context(), email, password)
	if err != nil {
		if errors.Is(err, admin.ErrInvalidCredentials) {
			fail(c, "Invalid email or password!")
			return
		}
		log.Printf("api: admin login failed: %v", err)
		failWith(c, http.StatusInternalServerError, "Login failed!")
		return
	}

	token, err := auth.Issue(a.Email, "admin", a.InstituteID, s.cfg.JWTIssuer, s.cfg.JWTSigningKey, s.cfg.AccessTTL)
	if err != nil {
		failWith(c, http.StatusInternalServerError, "token issue failed")
		return
	}

	instituteName := ""
	if inst != nil {
		instituteName = inst.Name
	}
	success(c, "Login successful!", gin.H{
		"id":             a.ID,
		"name":           a.Name,
		"email":          a.Email,
		"institute_id":   a.InstituteID,
		"institute_name": instituteName,
		"access_token":   token.Value,
		"expires_at":     token.ExpiresAt.Unix(),
	})
}

func (s *server) sendOTP(c *gin.Context) {
	email := c.PostForm("email")
	if email == "" {
		failWith(c, http.StatusBadRequest, "email is required")
		return
	}

	if err := s.admins.RequestOTP(c.Request.Context(), email); err != nil {
		log.Printf("api: send OTP failed: %v", err)
		fail(c, "Failed to send OTP. Please try again later.")
		return
	}
	// same message whether or not the account exists
	success(c, "If an account exists with this email, you will receive an OTP shortly.", nil)
}

func (s *server) verifyOTP(c *gin.Context) {
	email := c.PostForm("email")
	otp := c.PostForm("otp")

	a, err := s.admins.VerifyOTP(c.Request.Context(), email, otp)
	if err != nil {
		s.renderOTPError(c, err)
		return
	}
	success(c, "OTP verified successfully!", gin.H{"email": a.Email, "name": a.Name})
}

func (s *server) resetPassword(c *gin.Context) {
	email := c.PostForm("email")
	otp := c.PostForm("otp")
	newPassword := c.PostForm("new_password")

	if err := s.admins.ResetPassword(c.Request.Context(), email, otp, newPassword); err != nil {
		if errors.Is(err, admin.ErrWeakPassword) {
			fail(c, "Password must be at least 6 characters long!")
			return
		}
		s.renderOTPError(c, err)
		return
	}
	success(c, "Password reset successful! You can now login with your new password.", nil)
}

func (s *server) renderOTPError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, admin.ErrExpiredOTP):
		fail(c, "OTP has expired! Please request a new one.")
	case errors.Is(err, admin.ErrInvalidOTP):
		fail(c, "Invalid or expired OTP!")
	default:
		log.Printf("api: OTP operation failed: %v", err)
		failWith(c, http.StatusInternalServerError, "An error occurred. Please try again.")
	}
}

func instituteIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("instituteID"), 10, 64)
	if err != nil {
		failWith(c, http.StatusBadRequest, "invalid institute id")
		return 0, false
	}
	return id, true
}

func (s *server) listStudents(c *gin.Context) {
	id, ok := instituteIDParam(c)
	if !ok {
		return
	}
	list, err := s.students.ListByInstitute(c.Request.Context(), id)
	if err != nil {
		failWith(c, http.StatusInternalServerError, "Failed to fetch students!")
		return
	}
	out := make([]gin.H, 0, len(list))
	for _, st := range list {
		out = append(out, gin.H{
			"id":          st.ID,
			"name":        st.Name,
			"roll_number": st.RollNumber,
			"department":  st.Department,
		})
	}
	success(c, "", out)
}

func (s *server) todayAttendance(c *gin.Context) {
	id, ok := instituteIDParam(c)
	if !ok {
		return
	}
	entries, err := s.records.ListByInstituteAndDate(c.Request.Context(), id, time.Now())
	if err != nil {
		failWith(c, http.StatusInternalServerError, "Failed to fetch attendance!")
		return
	}
	out := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		out = append(out, gin.H{
			"id":           e.ID,
			"student_name": e.StudentName,
			"roll_number":  e.RollNumber,
			"department":   e.Department,
			"time":         e.Time,
			"status":       e.Status,
		})
	}
	success(c, "", out)
}

func (s *server) clearAttendance(c *gin.Context) {
	id, ok := instituteIDParam(c)
	if !ok {
		return
	}
	deleted, err := s.records.ClearByInstitute(c.Request.Context(), id)
	if err != nil {
		log.Printf("api: clear attendance failed: %v", err)
		fail(c, "Failed to clear attendance!")
		return
	}
	success(c, fmt.Sprintf("Successfully deleted %d attendance records!", deleted), nil)
}

func (s *server) exportAttendance(c *gin.Context) {
	id, ok := instituteIDParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	inst, err := s.institutes.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, institute.ErrNotFound) {
			failWith(c, http.StatusNotFound, "Institute not found")
			return
		}
		failWith(c, http.StatusInternalServerError, "Failed to generate report")
		return
	}

	today := time.Now()
	firstOfMonth := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())

	entries, err := s.records.ListByInstituteAndRange(ctx, id, firstOfMonth, today)
	if err != nil {
		failWith(c, http.StatusInternalServerError, "Failed to generate report")
		return
	}
	students, err := s.students.ListByInstitute(ctx, id)
	if err != nil {
		failWith(c, http.StatusInternalServerError, "Failed to generate report")
		return
	}

	workbook, err := report.Monthly(entries, students)
	if err != nil {
		log.Printf("api: excel generation failed: %v", err)
		failWith(c, http.StatusInternalServerError, "Failed to generate report")
		return
	}

	filename := report.Filename(inst.Name, today)
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", workbook)
}

func (s *server) uploadDressCode(c *gin.Context) {
	instituteID, err := strconv.ParseInt(c.PostForm("institute_id"), 10, 64)
	if err != nil {
		failWith(c, http.StatusBadRequest, "invalid institute_id")
		return
	}
	dressType := c.PostForm("dress_type")
	if dressType == "" {
		failWith(c, http.StatusBadRequest, "dress_type is required")
		return
	}
	photo, err := readUpload(c, "photo")
	if err != nil {
		failWith(c, http.StatusBadRequest, err.Error())
		return
	}

	encoded := base64.StdEncoding.EncodeToString(photo)
	if _, err := s.dressRefs.Create(c.Request.Context(), instituteID, dressType, encoded); err != nil {
		log.Printf("api: dress code upload failed: %v", err)
		fail(c, "Upload failed!")
		return
	}
	success(c, "Dress code uploaded successfully!", nil)
}

func (s *server) listDressCodes(c *gin.Context) {
	id, ok := instituteIDParam(c)
	if !ok {
		return
	}
	refs, err := s.dressRefs.ListByInstitute(c.Request.Context(), id)
	if err != nil {
		failWith(c, http.StatusInternalServerError, "Failed to fetch dress codes!")
		return
	}
	out := make([]gin.H, 0, len(refs))
	for _, ref := range refs {
		out = append(out, gin.H{
			"id":         ref.ID,
			"dress_type": ref.DressType,
			"image_data": ref.ImageData,
		})
	}
	success(c, "", out)
}

func (s *server) deleteDressCode(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		failWith(c, http.StatusBadRequest, "invalid dress code id")
		return
	}
	if err := s.dressRefs.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, dress.ErrNotFound) {
			fail(c, "Dress code not found!")
			return
		}
		failWith(c, http.StatusInternalServerError, "Delete failed!")
		return
	}
	success(c, "Dress code deleted successfully!", nil)
}

func (s *server) listHolidays(c *gin.Context) {
	id, ok := instituteIDParam(c)
	if !ok {
		return
	}
	overrides, err := s.holidays.ListByInstitute(c.Request.Context(), id)
	if err != nil {
		failWith(c, http.StatusInternalServerError, "Failed to fetch holidays!")
		return
	}
	out := make([]gin.H, 0, len(overrides))
	for _, o := range overrides {
		out = append(out, gin.H{
			"id":         o.ID,
			"date":       o.Date.Format("2006-01-02"),
			"is_holiday": o.IsHoliday,
			"reason":     o.Reason,
		})
	}
	success(c, "", out)
}

func (s *server) toggleHoliday(c *gin.Context) {
	instituteID, err := strconv.ParseInt(c.PostForm("institute_id"), 10, 64)
	if err != nil {
		failWith(c, http.StatusBadRequest, "invalid institute_id")
		return
	}
	day, err := time.Parse("2006-01-02", c.PostForm("date"))
	if err != nil {
		failWith(c, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	isHoliday := c.PostForm("is_holiday") == "true" || c.PostForm("is_holiday") == "1"
	reason := c.PostForm("reason")

	ctx := c.Request.Context()
	existing, err := s.holidays.FindOverride(ctx, instituteID, day)
	if err != nil {
		failWith(c, http.StatusInternalServerError, "Failed to update holiday!")
		return
	}
	if err := s.holidays.Upsert(ctx, instituteID, day, isHoliday, reason); err != nil {
		log.Printf("api: toggle holiday failed: %v", err)
		fail(c, "Failed to update holiday!")
		return
	}

	verb := "Marked"
	if existing != nil {
		verb = "Updated"
	}
	kind := "working day"
	if isHoliday {
		kind = "holiday"
	}
	success(c, fmt.Sprintf("%s %s as %s", verb, day.Format("2006-01-02"), kind), nil)
}
