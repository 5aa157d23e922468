// Package logger expone un logger Zap singleton con scoping por contexto.
//
// # Decisiones
//
//   - Singleton: una instancia por proceso, creada con Init().
//   - Scoping: cada request (o cada operación de sesión) puede llevar su propio
//     logger con campos extra (request_id, subject_id, op) sin crear otro core.
//   - Entornos: "dev" escribe consola con colores, "prod" escribe JSON.
//   - Nunca loguear tokens crudos ni secretos: usar JTI() o Fingerprint().
//
// # Uso
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
//	defer logger.Sync()
//
//	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("Refresh"))
//	log.Info("refresh rotated", logger.SubjectID(sub), logger.JTI(jti))
package logger
