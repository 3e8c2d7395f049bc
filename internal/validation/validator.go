// Package validation はリクエスト入力のフィールド検証を提供する。
//
// 検証ルールは構造体の validate タグで宣言し、go-playground/validator で評価する。
// メールアドレスの構文チェックは go-emailaddress によるカスタムタグ mailaddr で行う。
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mcnijman/go-emailaddress"

	"github.com/hitoshi/userapi/internal/model"
)

// Validator はvalidator.Validateをラップし、結果をフィールド名→メッセージに変換する。
// 内部でキャッシュを持つため、アプリケーション全体で1インスタンスを共有する。
type Validator struct {
	validate *validator.Validate
	messages map[string]map[string]string
}

// New は組み込みメッセージを持つValidatorを生成する。
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// エラーのフィールド名をJSONタグ名にする
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	mustRegister(v, customValidations())

	return &Validator{
		validate: v,
		messages: defaultMessages(),
	}
}

// defaultMessages はフィールドとルールごとのメッセージ表。
func defaultMessages() map[string]map[string]string {
	return map[string]map[string]string{
		"name": {
			"required": "Name is required",
			"max":      "Name must not exceed 100 characters",
		},
		"email": {
			"required": "Email is required",
			"mailaddr": "Email should be valid",
			"max":      "Email must not exceed 150 characters",
		},
		"bio": {
			"max": "Bio must not exceed 500 characters",
		},
	}
}

// customValidations は独自タグと検証関数の対応表。
func customValidations() map[string]validator.Func {
	return map[string]validator.Func{
		"mailaddr": isMailAddress,
	}
}

// registerValidations はタグを登録する。登録に失敗したタグ名をエラーに含める。
func registerValidations(v *validator.Validate, funcs map[string]validator.Func) error {
	for tag, fn := range funcs {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register validation %q: %w", tag, err)
		}
	}
	return nil
}

// mustRegister はregisterValidationsに失敗した場合にpanicする。
// タグが登録されないとそのルールが黙って無視されるため、起動時に止める。
func mustRegister(v *validator.Validate, funcs map[string]validator.Func) {
	if err := registerValidations(v, funcs); err != nil {
		panic(err)
	}
}

// isMailAddress はgo-emailaddressでメールアドレス構文を検証する。
func isMailAddress(fl validator.FieldLevel) bool {
	_, err := emailaddress.Parse(fl.Field().String())
	return err == nil
}

// ValidateUserInput はユーザー入力を正規化（前後空白の除去）してから検証する。
// 検証エラーがある場合は*model.ValidationErrorを返す。
func (v *Validator) ValidateUserInput(input *model.UserInput) error {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(input.Email)

	return v.Struct(input)
}

// Struct はタグに基づいて構造体を検証する。
// フィールドごとに最初に違反したルールのメッセージのみを返す。
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		if _, exists := fields[field]; exists {
			continue
		}
		fields[field] = v.message(field, fe)
	}

	return &model.ValidationError{Fields: fields}
}

func (v *Validator) message(field string, fe validator.FieldError) string {
	if byTag, ok := v.messages[field]; ok {
		if msg, ok := byTag[fe.Tag()]; ok {
			return msg
		}
	}
	return fe.Error()
}
