package apperrors

var (
	ErrConversationNotFound = NotFound("Conversation not found", "المحادثة غير موجودة")
	ErrMessageNotFound      = NotFound("Message not found", "الرسالة غير موجودة")
	ErrStickerNotFound      = NotFound("Sticker not found", "الملصق غير موجود")
	ErrNoImages             = NotFound("No images found", "لم يتم العثور على صور")

	ErrAccessDenied   = Forbidden("Access denied", "غير مسموح")
	ErrNotParticipant = Forbidden("You are not a participant in this conversation", "أنت لست مشاركًا في هذه المحادثة")
	ErrBlocked        = Forbidden("there is A Block Between The Two Users", "هناك حظر بينكما")
	ErrSecureLocked   = Forbidden("Only the user who enabled secure mode can disable it", "فقط المستخدم الذي فعل الوضع الآمن يمكنه إلغاؤه")
	ErrStickerLocked  = Forbidden("You do not have access to this sticker", "ليس لديك حق الوصول إلى هذا الملصق")
	ErrNotFriends     = Forbidden("User is not friends", "المستخدم ليس صديق")
	ErrAdminOnly      = Forbidden("Admin access required", "مطلوب صلاحية المسؤول")

	ErrInsufficientCredits = BadRequest("Insufficient credits", "رصيد غير كافي")
	ErrConversationExists  = BadRequest("Conversation already exists", "المحادثة موجودة بالفعل")
	ErrEmptyMessage        = BadRequest("Message cannot be empty", "الرسالة لا يمكن أن تكون فارغة")
	ErrFileRequired        = BadRequest("File is required", "الملف مطلوب")
	ErrInvalidMessageType  = BadRequest("Invalid message type", "نوع الرسالة غير صالح")
	ErrDurationRequired    = BadRequest("Audio URL and duration are required", "رابط الصوت والمدة مطلوبان")
	ErrSelfConversation    = BadRequest("Cannot start a conversation with yourself", "لا يمكنك بدء محادثة مع نفسك")
	ErrInvalidID           = BadRequest("Invalid id", "معرف غير صالح")
	ErrForbiddenWords      = BadRequest("Message contains forbidden words", "الرسالة تحتوي على كلمات محظورة")

	ErrUnauthenticated = Unauthenticated("Please authenticate", "يرجى تسجيل الدخول")
)
