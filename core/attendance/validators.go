package attendance

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/umoja/academy/core"
)

var (
	studentStatusTag  = "attendance_status"
	studentStatusText = "status must be one of Present, Absent, Late, Excused"

	teacherStatusTag  = "teacher_attendance_status"
	teacherStatusText = "status must be one of Present, Absent, Late, Half Day, On Leave"

	studentStatuses = map[string]bool{
		StatusPresent: true,
		StatusAbsent:  true,
		StatusLate:    true,
		StatusExcused: true,
	}
	teacherStatuses = map[string]bool{
		StatusPresent: true,
		StatusAbsent:  true,
		StatusLate:    true,
		StatusHalfDay: true,
		StatusOnLeave: true,
	}
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(studentStatusTag, func(fl validator.FieldLevel) bool {
		return studentStatuses[fl.Field().String()]
	})
	core.RegisterCustomTranslation(validate, translator, studentStatusTag, studentStatusText)

	_ = validate.RegisterValidation(teacherStatusTag, func(fl validator.FieldLevel) bool {
		return teacherStatuses[fl.Field().String()]
	})
	core.RegisterCustomTranslation(validate, translator, teacherStatusTag, teacherStatusText)
}
