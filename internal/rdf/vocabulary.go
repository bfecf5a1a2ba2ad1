package rdf

// Vocabulary URIs used by the synchronization queries. Kept in one place so
// the query builders and the tests agree on the exact terms.

// Core W3C vocabularies
const (
	RDFType   = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
	OwlSameAs = "http://www.w3.org/2002/07/owl#sameAs"

	XSDString   = "http://www.w3.org/2001/XMLSchema#string"
	XSDDateTime = "http://www.w3.org/2001/XMLSchema#dateTime"

	AdmsStatus = "http://www.w3.org/ns/adms#status"

	DctSource   = "http://purl.org/dc/terms/source"
	DctCreated  = "http://purl.org/dc/terms/created"
	DctRelation = "http://purl.org/dc/terms/relation"

	ProvQualifiedAssociation = "http://www.w3.org/ns/prov#qualifiedAssociation"
	ProvHadMember            = "http://www.w3.org/ns/prov#hadMember"
)

// Flemish government decision and mandate vocabularies
const (
	BesluitMeetingActivity = "http://data.vlaanderen.be/ns/besluit#Vergaderactiviteit"
	BesluitPlannedStart    = "http://data.vlaanderen.be/ns/besluit#geplandeStart"
	BesluitGoverningBody   = "http://data.vlaanderen.be/ns/besluit#Bestuursorgaan"

	MandaatRoleHolder = "http://data.vlaanderen.be/ns/mandaat#Mandataris"
	MandaatAliasOf    = "http://data.vlaanderen.be/ns/mandaat#isBestuurlijkeAliasVan"
	MandaatStart      = "http://data.vlaanderen.be/ns/mandaat#start"
	MandaatEnd        = "http://data.vlaanderen.be/ns/mandaat#einde"
)

// mu.semte.ch application vocabularies
const (
	ExtReleaseTask = "http://mu.semte.ch/vocabularies/ext/ReleaseTask"
	ExtLockToken   = "http://mu.semte.ch/vocabularies/ext/lockToken"
	MuUUID         = "http://mu.semte.ch/vocabularies/core/uuid"
)

// Semantic desktop email vocabulary used for the failure-notification outbox
const (
	NmoEmail          = "http://www.semanticdesktop.org/ontologies/2007/03/22/nmo#Email"
	NmoMessageFrom    = "http://www.semanticdesktop.org/ontologies/2007/03/22/nmo#messageFrom"
	NmoEmailTo        = "http://www.semanticdesktop.org/ontologies/2007/03/22/nmo#emailTo"
	NmoMessageSubject = "http://www.semanticdesktop.org/ontologies/2007/03/22/nmo#messageSubject"
	NmoPlainTextBody  = "http://www.semanticdesktop.org/ontologies/2007/03/22/nmo#plainTextMessageContent"
	NmoIsPartOf       = "http://www.semanticdesktop.org/ontologies/2007/03/22/nmo#isPartOf"
)
